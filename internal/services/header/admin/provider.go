// Package admin builds the capability-filtered admin links shown in the
// header's browse group.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/navheader/internal/services/header/menu"
	"github.com/louisbranch/navheader/internal/services/header/storage"
)

const (
	// CapabilityAdministrateServer implies every other capability.
	CapabilityAdministrateServer = "administrateServer"
	// CapabilityViewPlugins gates the plugin list.
	CapabilityViewPlugins = "viewPlugins"
)

// visibility says who sees a built-in link.
type visibility int

const (
	visibleToAll visibility = iota
	visibleSignedIn
	visibleWithCapability
)

type builtin struct {
	key        string
	url        string
	visibility visibility
	capability string
}

var builtins = []builtin{
	{key: "header.admin.repositories", url: "/admin/repos", visibility: visibleToAll},
	{key: "header.admin.groups", url: "/admin/groups", visibility: visibleSignedIn},
	{key: "header.admin.plugins", url: "/admin/plugins", visibility: visibleWithCapability, capability: CapabilityViewPlugins},
}

// CapabilitySource reports the signed-in viewer's global capabilities.
type CapabilitySource interface {
	Capabilities(ctx context.Context) (map[string]bool, error)
}

// PluginLinkSource lists plugin contributed admin links.
type PluginLinkSource interface {
	AdminLinks(ctx context.Context) ([]storage.AdminLink, error)
}

// Provider resolves the admin links for one viewer.
type Provider struct {
	capabilities CapabilitySource
	plugins      PluginLinkSource
	loc          menu.Localizer
}

// NewProvider builds a provider. plugins may be nil; loc nil means English.
func NewProvider(capabilities CapabilitySource, plugins PluginLinkSource, loc menu.Localizer) *Provider {
	return &Provider{capabilities: capabilities, plugins: plugins, loc: loc}
}

// AdminLinks returns the links account may see. Anonymous viewers never
// trigger a capability lookup.
func (p *Provider) AdminLinks(ctx context.Context, account *menu.Account) ([]menu.LinkItem, error) {
	if p == nil {
		return nil, nil
	}
	var pluginLinks []storage.AdminLink
	if account != nil && p.plugins != nil {
		links, err := p.plugins.AdminLinks(ctx)
		if err != nil {
			return nil, fmt.Errorf("list plugin admin links: %w", err)
		}
		pluginLinks = links
	}

	var caps map[string]bool
	if account != nil && needsCapabilities(pluginLinks) && p.capabilities != nil {
		granted, err := p.capabilities.Capabilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("load capabilities: %w", err)
		}
		caps = granted
	}

	links := make([]menu.LinkItem, 0, len(builtins)+len(pluginLinks))
	for _, entry := range builtins {
		switch entry.visibility {
		case visibleSignedIn:
			if account == nil {
				continue
			}
		case visibleWithCapability:
			if account == nil || !hasCapability(caps, entry.capability) {
				continue
			}
		}
		links = append(links, menu.LinkItem{URL: entry.url, Name: p.text(entry.key)})
	}
	for _, link := range pluginLinks {
		if capability := strings.TrimSpace(link.Capability); capability != "" && !hasCapability(caps, capability) {
			continue
		}
		links = append(links, menu.LinkItem{URL: link.URL, Name: link.Text})
	}
	return links, nil
}

func (p *Provider) text(key string) string {
	if p.loc != nil {
		return p.loc.Sprintf(key)
	}
	return englishText[key]
}

var englishText = map[string]string{
	"header.admin.repositories": "Repositories",
	"header.admin.groups":       "Groups",
	"header.admin.plugins":      "Plugins",
}

// needsCapabilities reports whether any built-in or plugin link is gated.
func needsCapabilities(pluginLinks []storage.AdminLink) bool {
	for _, entry := range builtins {
		if entry.visibility == visibleWithCapability {
			return true
		}
	}
	for _, link := range pluginLinks {
		if strings.TrimSpace(link.Capability) != "" {
			return true
		}
	}
	return false
}

func hasCapability(caps map[string]bool, capability string) bool {
	if caps == nil {
		return false
	}
	return caps[capability] || caps[CapabilityAdministrateServer]
}
