package header

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/navheader/internal/services/header/admin"
	"github.com/louisbranch/navheader/internal/services/header/controller"
	"github.com/louisbranch/navheader/internal/services/header/gateway"
	"github.com/louisbranch/navheader/internal/services/header/menu"
	"github.com/louisbranch/navheader/internal/services/header/storage"
)

// Backend is the per-viewer view of the code-review backend.
type Backend interface {
	controller.AccountSource
	controller.TopMenuSource
	controller.ConfigSource
	controller.DocsURLResolver
	controller.PreferencesSource
	admin.CapabilitySource
	BasePath() string
}

// BackendFactory builds the backend client acting for the request's viewer.
type BackendFactory func(r *http.Request) (Backend, error)

// GatewayBackends forwards each viewer's cookies through client.
func GatewayBackends(client *gateway.Client) BackendFactory {
	return func(r *http.Request) (Backend, error) {
		viewer, err := client.ForViewer(r.Cookies())
		if err != nil {
			return nil, err
		}
		return viewer, nil
	}
}

// combinedTopMenus lists backend menus followed by plugin registered menus.
type combinedTopMenus struct {
	backend  controller.TopMenuSource
	registry storage.PluginRegistry
}

func (c combinedTopMenus) TopMenus(ctx context.Context) ([]menu.TopMenu, error) {
	menus, err := c.backend.TopMenus(ctx)
	if err != nil {
		return nil, err
	}
	if c.registry == nil {
		return menus, nil
	}
	pluginMenus, err := c.registry.TopMenus(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plugin top menus: %w", err)
	}
	return append(menus, pluginMenus...), nil
}

// registryWaiter waits for expected plugins, giving up quietly after timeout
// so a missing plugin never blocks the header.
type registryWaiter struct {
	registry storage.PluginRegistry
	expected []string
	timeout  time.Duration
	logger   *log.Logger
}

func (w registryWaiter) AwaitPluginsLoaded(ctx context.Context) error {
	if w.registry == nil || len(w.expected) == 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	err := w.registry.WaitPlugins(waitCtx, w.expected)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		w.logger.Printf("plugins not loaded within %s expected=%v", w.timeout, w.expected)
		return nil
	}
	return err
}

// registryAdminLinks adapts the registry for the admin provider; a nil
// registry contributes nothing.
type registryAdminLinks struct {
	registry storage.PluginRegistry
}

func (r registryAdminLinks) AdminLinks(ctx context.Context) ([]storage.AdminLink, error) {
	if r.registry == nil {
		return nil, nil
	}
	return r.registry.AdminLinks(ctx)
}
