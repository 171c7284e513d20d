// Package sqlite provides a SQLite-backed plugin registry.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/navheader/internal/platform/errors"
	"github.com/louisbranch/navheader/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/navheader/internal/services/header/menu"
	"github.com/louisbranch/navheader/internal/services/header/storage"
	"github.com/louisbranch/navheader/internal/services/header/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists plugin registrations in SQLite.
type Store struct {
	sqlDB *sql.DB

	// changed is closed and replaced whenever the plugin set changes.
	mu      sync.Mutex
	changed chan struct{}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite plugin registry and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, changed: make(chan struct{})}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutPlugin creates or replaces one plugin's registration. The original
// registration time survives replacement so plugin ordering stays stable.
func (s *Store) PutPlugin(ctx context.Context, reg storage.PluginRegistration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	plugin := strings.TrimSpace(reg.Plugin)
	if plugin == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "plugin name is required")
	}
	if err := validateRegistration(reg); err != nil {
		return err
	}
	now := reg.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	registeredAt := reg.RegisteredAt.UTC()
	if registeredAt.IsZero() {
		registeredAt = now
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put plugin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plugins (name, registered_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		plugin, toMillis(registeredAt), toMillis(now),
	); err != nil {
		return fmt.Errorf("put plugin: %w", err)
	}
	if err := deleteContributions(ctx, tx, plugin); err != nil {
		return err
	}
	for menuPos, topMenu := range reg.TopMenus {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plugin_top_menus (plugin, position, name) VALUES (?, ?, ?)`,
			plugin, menuPos, topMenu.Name,
		); err != nil {
			return fmt.Errorf("put top menu %q: %w", topMenu.Name, err)
		}
		for itemPos, item := range topMenu.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO plugin_top_menu_items (plugin, menu_position, position, url, name, target)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				plugin, menuPos, itemPos, item.URL, item.Name, item.Target,
			); err != nil {
				return fmt.Errorf("put top menu item %q: %w", item.Name, err)
			}
		}
	}
	for pos, link := range reg.AdminLinks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plugin_admin_links (plugin, position, text, url, capability) VALUES (?, ?, ?, ?, ?)`,
			plugin, pos, link.Text, link.URL, link.Capability,
		); err != nil {
			return fmt.Errorf("put admin link %q: %w", link.Text, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put plugin: %w", err)
	}
	s.notify()
	return nil
}

func validateRegistration(reg storage.PluginRegistration) error {
	for idx, topMenu := range reg.TopMenus {
		if strings.TrimSpace(topMenu.Name) == "" {
			return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("top menu %d: name is required", idx))
		}
		if _, err := menu.NormalizeAll(topMenu.Items); err != nil {
			return fmt.Errorf("top menu %q: %w", topMenu.Name, err)
		}
	}
	for idx, link := range reg.AdminLinks {
		if strings.TrimSpace(link.URL) == "" {
			return apperrors.New(apperrors.CodeLinkURLMissing, fmt.Sprintf("admin link %d: url is required", idx))
		}
	}
	return nil
}

func deleteContributions(ctx context.Context, tx *sql.Tx, plugin string) error {
	for _, table := range []string{"plugin_top_menu_items", "plugin_top_menus", "plugin_admin_links"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE plugin = ?", plugin); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// GetPlugin returns one plugin registration.
func (s *Store) GetPlugin(ctx context.Context, plugin string) (storage.PluginRegistration, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PluginRegistration{}, err
	}
	plugin = strings.TrimSpace(plugin)
	var reg storage.PluginRegistration
	var registeredAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT name, registered_at, updated_at FROM plugins WHERE name = ?`, plugin,
	).Scan(&reg.Plugin, &registeredAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PluginRegistration{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PluginRegistration{}, fmt.Errorf("get plugin: %w", err)
	}
	reg.RegisteredAt = fromMillis(registeredAt)
	reg.UpdatedAt = fromMillis(updatedAt)

	if reg.TopMenus, err = s.queryTopMenus(ctx, "WHERE m.plugin = ?", plugin); err != nil {
		return storage.PluginRegistration{}, err
	}
	if reg.AdminLinks, err = s.queryAdminLinks(ctx, "WHERE a.plugin = ?", plugin); err != nil {
		return storage.PluginRegistration{}, err
	}
	return reg, nil
}

// DeletePlugin removes a plugin and everything it contributed.
func (s *Store) DeletePlugin(ctx context.Context, plugin string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	plugin = strings.TrimSpace(plugin)
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete plugin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteContributions(ctx, tx, plugin); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM plugins WHERE name = ?`, plugin)
	if err != nil {
		return fmt.Errorf("delete plugin: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete plugin: %w", err)
	}
	s.notify()
	return nil
}

// Plugins returns registered plugin names in registration order.
func (s *Store) Plugins(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM plugins ORDER BY registered_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list plugins: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	return names, nil
}

// TopMenus returns every plugin top menu in plugin registration order.
func (s *Store) TopMenus(ctx context.Context) ([]menu.TopMenu, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryTopMenus(ctx, "")
}

// AdminLinks returns every plugin admin link in plugin registration order.
func (s *Store) AdminLinks(ctx context.Context) ([]storage.AdminLink, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryAdminLinks(ctx, "")
}

func (s *Store) queryTopMenus(ctx context.Context, where string, args ...any) ([]menu.TopMenu, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT m.plugin, m.position, m.name, i.url, i.name, i.target
		   FROM plugin_top_menus m
		   JOIN plugins p ON p.name = m.plugin
		   LEFT JOIN plugin_top_menu_items i
		     ON i.plugin = m.plugin AND i.menu_position = m.position
		 `+where+`
		  ORDER BY p.registered_at ASC, p.name ASC, m.position ASC, i.position ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list top menus: %w", err)
	}
	defer rows.Close()

	menus := []menu.TopMenu{}
	lastKey := ""
	for rows.Next() {
		var (
			plugin   string
			position int
			name     string
			url      sql.NullString
			itemName sql.NullString
			target   sql.NullString
		)
		if err := rows.Scan(&plugin, &position, &name, &url, &itemName, &target); err != nil {
			return nil, fmt.Errorf("list top menus: %w", err)
		}
		key := fmt.Sprintf("%s/%d", plugin, position)
		if key != lastKey {
			menus = append(menus, menu.TopMenu{Name: name, Items: []menu.RawLink{}})
			lastKey = key
		}
		if url.Valid {
			current := &menus[len(menus)-1]
			current.Items = append(current.Items, menu.RawLink{URL: url.String, Name: itemName.String, Target: target.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list top menus: %w", err)
	}
	return menus, nil
}

func (s *Store) queryAdminLinks(ctx context.Context, where string, args ...any) ([]storage.AdminLink, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT a.text, a.url, a.capability
		   FROM plugin_admin_links a
		   JOIN plugins p ON p.name = a.plugin
		 `+where+`
		  ORDER BY p.registered_at ASC, p.name ASC, a.position ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list admin links: %w", err)
	}
	defer rows.Close()

	links := []storage.AdminLink{}
	for rows.Next() {
		var link storage.AdminLink
		if err := rows.Scan(&link.Text, &link.URL, &link.Capability); err != nil {
			return nil, fmt.Errorf("list admin links: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admin links: %w", err)
	}
	return links, nil
}

// WaitPlugins blocks until every expected plugin is registered or ctx ends.
func (s *Store) WaitPlugins(ctx context.Context, expected []string) error {
	for {
		changed := s.changedChan()
		registered, err := s.Plugins(ctx)
		if err != nil {
			return err
		}
		if containsAll(registered, expected) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func containsAll(have []string, want []string) bool {
	for _, name := range want {
		if !slices.Contains(have, strings.TrimSpace(name)) {
			return false
		}
	}
	return true
}

func (s *Store) changedChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Store) notify() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

var _ storage.PluginRegistry = (*Store)(nil)
