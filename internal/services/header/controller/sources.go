package controller

import (
	"context"

	"github.com/louisbranch/navheader/internal/services/header/menu"
)

// AccountSource returns the signed-in account, nil for anonymous viewers.
type AccountSource interface {
	Account(ctx context.Context) (*menu.Account, error)
}

// TopMenuSource lists server and plugin top menus.
type TopMenuSource interface {
	TopMenus(ctx context.Context) ([]menu.TopMenu, error)
}

// PluginWaiter blocks until header plugins finished registering.
type PluginWaiter interface {
	AwaitPluginsLoaded(ctx context.Context) error
}

// AdminLinkSource yields the admin links account may see.
type AdminLinkSource interface {
	AdminLinks(ctx context.Context, account *menu.Account) ([]menu.LinkItem, error)
}

// ConfigSource returns the backend server config.
type ConfigSource interface {
	ServerConfig(ctx context.Context) (menu.ServerConfig, error)
}

// DocsURLResolver decides the documentation base URL; "" means none.
type DocsURLResolver interface {
	DocsBaseURL(ctx context.Context, docURL string) (string, error)
}

// PreferencesSource returns the viewer's personal menu links.
type PreferencesSource interface {
	MenuPreferences(ctx context.Context) ([]menu.RawLink, error)
}

// Sources bundles the collaborators a Controller fetches from. Nil members
// are skipped.
type Sources struct {
	Account     AccountSource
	TopMenus    TopMenuSource
	Plugins     PluginWaiter
	AdminLinks  AdminLinkSource
	Config      ConfigSource
	Docs        DocsURLResolver
	Preferences PreferencesSource
}
