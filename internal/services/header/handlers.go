package header

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/navheader/internal/platform/errors"
	errori18n "github.com/louisbranch/navheader/internal/platform/errors/i18n"
	"github.com/louisbranch/navheader/internal/platform/timeouts"
	"github.com/louisbranch/navheader/internal/services/header/admin"
	"github.com/louisbranch/navheader/internal/services/header/controller"
	"github.com/louisbranch/navheader/internal/services/header/menu"
	"github.com/louisbranch/navheader/internal/services/header/navstate"
	"github.com/louisbranch/navheader/internal/services/header/platform/httpx"
	"github.com/louisbranch/navheader/internal/services/header/storage"
	"github.com/louisbranch/navheader/internal/services/header/templates"
)

const maxPluginBody = 1 << 20

// headerView is everything one header render needs.
type headerView struct {
	Lang        string              `json:"lang"`
	HomeURL     string              `json:"homeUrl"`
	LoginURL    string              `json:"loginUrl"`
	SettingsURL string              `json:"settingsUrl"`
	Snapshot    controller.Snapshot `json:"header"`
	Notices     []string            `json:"notices,omitempty"`
	text        templates.HeaderText
}

func (s *service) buildView(r *http.Request) headerView {
	tag := s.resolveLanguage(r)
	lang := tag.String()
	printer := s.catalog.Printer(tag)
	labels := menu.LabelsFor(printer)

	basePath := s.basePath
	var snapshot controller.Snapshot
	backend, err := s.backends(r)
	if err != nil {
		s.logger.Printf("create backend client: %v", err)
		snapshot = unavailableSnapshot(labels, err)
	} else {
		if basePath == "" {
			basePath = backend.BasePath()
		}
		session, created := s.sessions.acquire(viewerKey(r, lang), func() *controller.Controller {
			return s.newController(backend, printer, labels)
		})
		ctx, cancel := context.WithTimeout(httpx.RequestContext(r), timeouts.HeaderLoad)
		defer cancel()
		s.refresh(ctx, session, created)
		snapshot = session.ctrl.Snapshot()
	}

	bus := navstate.NewBus()
	nav := navstate.New(bus, navstate.StaticBaseURL(basePath))
	defer nav.Close()
	bus.Publish(resolveLocation(r))

	notices := failureNotices(lang, snapshot.Errors)
	return headerView{
		Lang:        lang,
		HomeURL:     menu.RelativeURL(resolveHost(r), basePath, "/"),
		LoginURL:    nav.LoginURL(),
		SettingsURL: menu.SettingsURL(basePath),
		Snapshot:    snapshot,
		Notices:     notices,
		text: templates.HeaderText{
			Home:     printer.Sprintf("header.home"),
			SignIn:   printer.Sprintf("header.sign_in"),
			Settings: printer.Sprintf("header.settings"),
			Degraded: printer.Sprintf("header.degraded"),
			Notices:  notices,
		},
	}
}

func (s *service) newController(backend Backend, printer menu.Localizer, labels menu.Labels) *controller.Controller {
	return controller.New(controller.Sources{
		Account:  backend,
		TopMenus: combinedTopMenus{backend: backend, registry: s.registry},
		Plugins: registryWaiter{
			registry: s.registry,
			expected: s.expectedPlugins,
			timeout:  s.pluginWait,
			logger:   s.logger,
		},
		AdminLinks:  admin.NewProvider(backend, registryAdminLinks{registry: s.registry}, printer),
		Config:      backend,
		Docs:        backend,
		Preferences: backend,
	}, controller.Options{
		Labels:  labels,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
}

// refresh brings a session up to date. The creator runs the first Load;
// later requests wait for it and then reload the account group, retrying the
// config group only while it is failing. Failures are logged and surface
// through the snapshot's degraded state.
func (s *service) refresh(ctx context.Context, session *viewerSession, created bool) {
	if created {
		defer close(session.ready)
		_ = session.ctrl.Load(ctx)
		return
	}
	select {
	case <-session.ready:
	case <-ctx.Done():
		return
	}
	if configFailing(session.ctrl.Snapshot()) {
		_ = session.ctrl.Load(ctx)
		return
	}
	_ = session.ctrl.Reload(ctx)
}

func configFailing(snapshot controller.Snapshot) bool {
	for _, failure := range snapshot.Errors {
		if failure.Source == controller.SourceConfig || failure.Source == controller.SourceDocs {
			return true
		}
	}
	return false
}

// unavailableSnapshot is the header shown when no backend client could be
// built: the default menu with the failure recorded.
func unavailableSnapshot(labels menu.Labels, err error) controller.Snapshot {
	snapshot := controller.New(controller.Sources{}, controller.Options{Labels: labels}).Snapshot()
	snapshot.Degraded = true
	snapshot.Errors = append(snapshot.Errors, controller.SourceFailure{
		Source:  controller.SourceBackend,
		Code:    apperrors.CodeDataSourceUnavailable,
		Message: err.Error(),
	})
	return snapshot
}

func (s *service) handleHeader(w http.ResponseWriter, r *http.Request) {
	view := s.buildView(r)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Vary", "Accept-Language, Cookie")
	templ.Handler(templates.Header(templates.HeaderOptions{
		Lang:        view.Lang,
		Snapshot:    view.Snapshot,
		HomeURL:     view.HomeURL,
		LoginURL:    view.LoginURL,
		SettingsURL: view.SettingsURL,
		Text:        view.text,
	})).ServeHTTP(w, r)
}

func (s *service) handleHeaderJSON(w http.ResponseWriter, r *http.Request) {
	view := s.buildView(r)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Vary", "Accept-Language, Cookie")
	if err := httpx.WriteJSON(w, http.StatusOK, view); err != nil {
		s.logger.Printf("write header json: %v", err)
	}
}

// failureNotices renders one user-facing line per failing source.
func failureNotices(locale string, failures []controller.SourceFailure) []string {
	if len(failures) == 0 {
		return nil
	}
	catalog := errori18n.GetCatalog(locale)
	notices := make([]string, 0, len(failures))
	for _, failure := range failures {
		notices = append(notices, catalog.Format(string(failure.Code), map[string]string{"source": failure.Source}))
	}
	return notices
}

// pluginRequest is the body of a plugin registration.
type pluginRequest struct {
	TopMenus   []menu.TopMenu      `json:"top_menus"`
	AdminLinks []storage.AdminLink `json:"admin_links"`
}

type pluginResponse struct {
	Plugin       string              `json:"plugin"`
	TopMenus     []menu.TopMenu      `json:"top_menus"`
	AdminLinks   []storage.AdminLink `json:"admin_links"`
	RegisteredAt time.Time           `json:"registered_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func toPluginResponse(reg storage.PluginRegistration) pluginResponse {
	out := pluginResponse{
		Plugin:       reg.Plugin,
		TopMenus:     reg.TopMenus,
		AdminLinks:   reg.AdminLinks,
		RegisteredAt: reg.RegisteredAt,
		UpdatedAt:    reg.UpdatedAt,
	}
	if out.TopMenus == nil {
		out.TopMenus = []menu.TopMenu{}
	}
	if out.AdminLinks == nil {
		out.AdminLinks = []storage.AdminLink{}
	}
	return out
}

func (s *service) handlePutPlugin(w http.ResponseWriter, r *http.Request) {
	plugin := strings.TrimSpace(r.PathValue("plugin"))
	var body pluginRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxPluginBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		httpx.WriteError(w, apperrors.Wrap(apperrors.CodeInvalidArgument, "decode plugin registration", err))
		return
	}

	ctx := httpx.RequestContext(r)
	if err := s.registry.PutPlugin(ctx, storage.PluginRegistration{
		Plugin:     plugin,
		TopMenus:   body.TopMenus,
		AdminLinks: body.AdminLinks,
	}); err != nil {
		s.writeRegistryError(w, "put plugin", err)
		return
	}
	reg, err := s.registry.GetPlugin(ctx, plugin)
	if err != nil {
		s.writeRegistryError(w, "get plugin", err)
		return
	}
	s.logger.Printf("plugin registered plugin=%s top_menus=%d admin_links=%d", plugin, len(reg.TopMenus), len(reg.AdminLinks))
	_ = httpx.WriteJSON(w, http.StatusOK, toPluginResponse(reg))
}

func (s *service) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.GetPlugin(httpx.RequestContext(r), strings.TrimSpace(r.PathValue("plugin")))
	if err != nil {
		s.writeRegistryError(w, "get plugin", err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toPluginResponse(reg))
}

func (s *service) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	plugin := strings.TrimSpace(r.PathValue("plugin"))
	if err := s.registry.DeletePlugin(httpx.RequestContext(r), plugin); err != nil {
		s.writeRegistryError(w, "delete plugin", err)
		return
	}
	s.logger.Printf("plugin unregistered plugin=%s", plugin)
	w.WriteHeader(http.StatusNoContent)
}

func (s *service) writeRegistryError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, apperrors.Wrap(apperrors.CodeNotFound, "plugin not found", err))
	case apperrors.IsCode(err, apperrors.CodeInvalidArgument), apperrors.IsCode(err, apperrors.CodeLinkURLMissing):
		httpx.WriteError(w, err)
	default:
		s.logger.Printf("%s: %v", action, err)
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			err = fmt.Errorf("%s: %w", action, err)
		}
		httpx.WriteError(w, err)
	}
}
