// Package controller orchestrates the header's data sources and keeps the
// latest consistent view of the menu for one viewer.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/louisbranch/navheader/internal/platform/errors"
	"github.com/louisbranch/navheader/internal/platform/otel"
	"github.com/louisbranch/navheader/internal/platform/telemetry/metrics"
	"github.com/louisbranch/navheader/internal/services/header/menu"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Data source names used in logs, metrics and snapshot errors.
const (
	SourceAccount     = "account"
	SourceTopMenus    = "top_menus"
	SourcePlugins     = "plugins"
	SourceAdminLinks  = "admin_links"
	SourceConfig      = "config"
	SourceDocs        = "docs"
	SourcePreferences = "preferences"
	SourceMenu        = "menu"
	// SourceBackend marks a viewer whose backend client could not be built.
	SourceBackend = "backend"
)

// Fetch groups. Responses are sequenced per group.
const (
	groupAccount = "account"
	groupConfig  = "config"
)

// Options customizes a Controller.
type Options struct {
	Labels  menu.Labels
	Logger  *log.Logger
	Metrics *metrics.Recorder
	Tracer  trace.Tracer
}

// Controller holds the header state for one viewer. All methods are safe for
// concurrent use.
type Controller struct {
	sources Sources
	labels  menu.Labels
	logger  *log.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer

	accountSeq atomic.Uint64
	configSeq  atomic.Uint64

	mu        sync.RWMutex
	committed map[string]uint64
	state     state
}

type state struct {
	loading      bool
	account      *menu.Account
	loggedIn     bool
	topMenus     []menu.TopMenu
	adminLinks   []menu.LinkItem
	userLinks    []menu.LinkItem
	registration menu.Registration
	docBaseURL   string
	groups       []menu.LinkGroup
	errors       map[string]SourceFailure
}

// New builds a controller. The initial snapshot holds the default groups.
func New(sources Sources, opts Options) *Controller {
	labels := opts.Labels
	if labels.Changes == "" {
		labels = menu.EnglishLabels()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/louisbranch/navheader/internal/services/header/controller")
	}
	c := &Controller{
		sources:   sources,
		labels:    labels,
		logger:    logger,
		metrics:   opts.Metrics,
		tracer:    tracer,
		committed: make(map[string]uint64),
		state: state{
			registration: menu.Registration{Text: labels.RegisterText},
			errors:       make(map[string]SourceFailure),
		},
	}
	c.recomputeLocked()
	return c
}

// Load fetches the account and config groups concurrently. Each group
// commits independently; the returned error joins every failure, and the
// snapshot keeps the last good state for failed sources.
func (c *Controller) Load(ctx context.Context) error {
	var g errgroup.Group
	var accountErr, configErr error
	g.Go(func() error {
		accountErr = c.loadAccount(ctx)
		return nil
	})
	g.Go(func() error {
		configErr = c.loadConfig(ctx)
		return nil
	})
	_ = g.Wait()
	return errors.Join(accountErr, configErr)
}

// Reload re-issues the account group, superseding any fetch in flight.
func (c *Controller) Reload(ctx context.Context) error {
	return c.loadAccount(ctx)
}

func (c *Controller) loadAccount(ctx context.Context) error {
	id := c.accountSeq.Add(1)
	c.mu.Lock()
	c.state.loading = true
	c.mu.Unlock()

	var (
		account  *menu.Account
		topMenus []menu.TopMenu
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.fetch(gctx, SourceAccount, func(ctx context.Context) error {
			if c.sources.Account == nil {
				return nil
			}
			var err error
			account, err = c.sources.Account.Account(ctx)
			return err
		})
	})
	g.Go(func() error {
		return c.fetch(gctx, SourceTopMenus, func(ctx context.Context) error {
			if c.sources.TopMenus == nil {
				return nil
			}
			var err error
			topMenus, err = c.sources.TopMenus.TopMenus(ctx)
			return err
		})
	})
	g.Go(func() error {
		return c.fetch(gctx, SourcePlugins, func(ctx context.Context) error {
			if c.sources.Plugins == nil {
				return nil
			}
			return c.sources.Plugins.AwaitPluginsLoaded(ctx)
		})
	})
	if err := g.Wait(); err != nil {
		c.fail(groupAccount, id, err)
		return err
	}
	if !c.commit(groupAccount, id, func(s *state) {
		s.account = account
		s.loggedIn = account != nil
		s.loading = false
		s.topMenus = topMenus
		if account == nil {
			s.userLinks = nil
		}
		delete(s.errors, SourceAccount)
		delete(s.errors, SourceTopMenus)
		delete(s.errors, SourcePlugins)
	}) {
		return nil
	}

	var adminLinks []menu.LinkItem
	if err := c.fetch(ctx, SourceAdminLinks, func(ctx context.Context) error {
		if c.sources.AdminLinks == nil {
			return nil
		}
		var err error
		adminLinks, err = c.sources.AdminLinks.AdminLinks(ctx, account)
		return err
	}); err != nil {
		c.fail(groupAccount, id, err)
		return err
	}
	if !c.commit(groupAccount, id, func(s *state) {
		s.adminLinks = adminLinks
		delete(s.errors, SourceAdminLinks)
	}) {
		return nil
	}

	if account == nil || c.sources.Preferences == nil {
		return nil
	}
	var userLinks []menu.LinkItem
	if err := c.fetch(ctx, SourcePreferences, func(ctx context.Context) error {
		raws, err := c.sources.Preferences.MenuPreferences(ctx)
		if err != nil {
			return err
		}
		userLinks, err = menu.UserLinks(raws)
		return err
	}); err != nil {
		c.fail(groupAccount, id, err)
		return err
	}
	c.commit(groupAccount, id, func(s *state) {
		s.userLinks = userLinks
		delete(s.errors, SourcePreferences)
	})
	return nil
}

func (c *Controller) loadConfig(ctx context.Context) error {
	if c.sources.Config == nil {
		return nil
	}
	id := c.configSeq.Add(1)

	var cfg menu.ServerConfig
	if err := c.fetch(ctx, SourceConfig, func(ctx context.Context) error {
		var err error
		cfg, err = c.sources.Config.ServerConfig(ctx)
		return err
	}); err != nil {
		c.fail(groupConfig, id, err)
		return err
	}

	registration, regErr := menu.ResolveRegistration(cfg.Auth, c.labels.RegisterText)
	if regErr != nil {
		c.logger.Printf("resolve registration: %v", regErr)
	}
	if !c.commit(groupConfig, id, func(s *state) {
		s.registration = registration
		delete(s.errors, SourceConfig)
		if regErr != nil {
			s.errors[SourceConfig] = newSourceFailure(SourceConfig, regErr)
		}
	}) {
		return nil
	}

	docBaseURL := cfg.DocURL
	if err := c.fetch(ctx, SourceDocs, func(ctx context.Context) error {
		if c.sources.Docs == nil {
			return nil
		}
		var err error
		docBaseURL, err = c.sources.Docs.DocsBaseURL(ctx, cfg.DocURL)
		return err
	}); err != nil {
		c.fail(groupConfig, id, err)
		return err
	}
	c.commit(groupConfig, id, func(s *state) {
		s.docBaseURL = docBaseURL
		delete(s.errors, SourceDocs)
	})
	if regErr != nil {
		return regErr
	}
	return nil
}

// fetch runs fn inside a span and classifies its failure under source.
func (c *Controller) fetch(ctx context.Context, source string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "header.fetch."+source)
	defer span.End()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	c.metrics.FetchFailed(source)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if appErr.Metadata == nil || appErr.Metadata["source"] == "" {
			return &sourceError{source: source, err: err}
		}
		return err
	}
	return apperrors.DataSource(source, err)
}

// sourceError tags an already classified error with the source that failed.
type sourceError struct {
	source string
	err    error
}

func (e *sourceError) Error() string { return fmt.Sprintf("%s: %v", e.source, e.err) }
func (e *sourceError) Unwrap() error { return e.err }

func sourceOf(err error) string {
	var tagged *sourceError
	if errors.As(err, &tagged) {
		return tagged.source
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Metadata != nil {
		return appErr.Metadata["source"]
	}
	return ""
}

// commit applies fn unless a newer request of group already committed.
func (c *Controller) commit(group string, id uint64, fn func(*state)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < c.committed[group] {
		c.metrics.StaleDiscarded(group)
		c.logger.Printf("discard stale response group=%s request=%d latest=%d", group, id, c.committed[group])
		return false
	}
	c.committed[group] = id
	fn(&c.state)
	c.recomputeLocked()
	return true
}

// fail records err for its source unless the request is already stale.
// Previously committed data stays in place.
func (c *Controller) fail(group string, id uint64, err error) {
	source := sourceOf(err)
	if source == "" {
		source = group
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < c.committed[group] {
		c.metrics.StaleDiscarded(group)
		return
	}
	c.committed[group] = id
	if group == groupAccount {
		c.state.loading = false
	}
	c.state.errors[source] = newSourceFailure(source, err)
	c.logger.Printf("header fetch failed source=%s code=%s: %v", source, apperrors.CodeOf(err), err)
}

// recomputeLocked rebuilds the menu from the current inputs. Malformed top
// menu items are left out and reported under SourceMenu.
func (c *Controller) recomputeLocked() {
	groups, err := menu.Compute(menu.Input{
		Defaults:   menu.DefaultGroups(c.labels),
		User:       c.state.userLinks,
		Admin:      c.state.adminLinks,
		TopMenus:   c.state.topMenus,
		DocBaseURL: c.state.docBaseURL,
	}, c.labels)
	c.metrics.Recomputed()
	c.state.groups = groups
	if err != nil {
		if _, seen := c.state.errors[SourceMenu]; !seen {
			c.logger.Printf("compute header menu: %v", err)
		}
		c.state.errors[SourceMenu] = newSourceFailure(SourceMenu, err)
		return
	}
	delete(c.state.errors, SourceMenu)
}

// SourceFailure describes one data source currently failing.
type SourceFailure struct {
	Source  string         `json:"source"`
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func newSourceFailure(source string, err error) SourceFailure {
	return SourceFailure{Source: source, Code: apperrors.CodeOf(err), Message: err.Error()}
}

// Snapshot is a consistent copy of the header state.
type Snapshot struct {
	Loading      bool              `json:"loading"`
	LoggedIn     bool              `json:"loggedIn"`
	Account      *menu.Account     `json:"account,omitempty"`
	Groups       []menu.LinkGroup  `json:"groups"`
	Registration menu.Registration `json:"registration"`
	DocBaseURL   string            `json:"docBaseUrl,omitempty"`
	Degraded     bool              `json:"degraded"`
	Errors       []SourceFailure   `json:"errors,omitempty"`
}

// Snapshot returns a copy of the current state that shares no memory with
// the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Snapshot{
		Loading:      c.state.loading,
		LoggedIn:     c.state.loggedIn,
		Groups:       cloneGroups(c.state.groups),
		Registration: c.state.registration,
		DocBaseURL:   c.state.docBaseURL,
		Degraded:     len(c.state.errors) > 0,
	}
	if c.state.account != nil {
		account := *c.state.account
		out.Account = &account
	}
	for _, failure := range c.state.errors {
		out.Errors = append(out.Errors, failure)
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Source < out.Errors[j].Source })
	return out
}

func cloneGroups(groups []menu.LinkGroup) []menu.LinkGroup {
	out := make([]menu.LinkGroup, len(groups))
	for i, group := range groups {
		out[i] = menu.LinkGroup{
			Title: group.Title,
			Class: group.Class,
			Links: append([]menu.LinkItem(nil), group.Links...),
		}
	}
	return out
}
