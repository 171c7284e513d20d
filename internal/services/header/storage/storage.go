// Package storage defines persistence contracts for plugin menu registrations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/navheader/internal/services/header/menu"
)

var (
	// ErrNotFound indicates a requested plugin registration is missing.
	ErrNotFound = errors.New("record not found")
)

// AdminLink is a plugin-provided entry for the admin (browse) menu.
type AdminLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	// Capability gates the link; empty means every signed-in user sees it.
	Capability string `json:"capability,omitempty"`
}

// PluginRegistration stores everything one plugin contributes to the header.
type PluginRegistration struct {
	Plugin       string
	TopMenus     []menu.TopMenu
	AdminLinks   []AdminLink
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// PluginRegistry persists plugin header contributions.
//
// TopMenus and AdminLinks return entries ordered by plugin registration time,
// then by their position within the registration.
type PluginRegistry interface {
	PutPlugin(ctx context.Context, reg PluginRegistration) error
	GetPlugin(ctx context.Context, plugin string) (PluginRegistration, error)
	DeletePlugin(ctx context.Context, plugin string) error
	Plugins(ctx context.Context) ([]string, error)
	TopMenus(ctx context.Context) ([]menu.TopMenu, error)
	AdminLinks(ctx context.Context) ([]AdminLink, error)
	WaitPlugins(ctx context.Context, expected []string) error
}
