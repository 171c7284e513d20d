package menu

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/navheader/internal/platform/errors"
)

// LinkItem is one rendered navigation link.
type LinkItem struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
	// External marks links that may point outside the app's client routes.
	External bool `json:"external,omitempty"`
}

// RawLink is a link descriptor as delivered by the backend or a plugin.
type RawLink struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
}

// LinkGroup is a titled menu section. Title is the merge key.
type LinkGroup struct {
	Title string     `json:"title"`
	Links []LinkItem `json:"links"`
	Class string     `json:"class,omitempty"`
}

// TopMenu is a server or plugin registered named set of extra links.
type TopMenu struct {
	Name  string    `json:"name"`
	Items []RawLink `json:"items"`
}

// ClassHideOnMobile marks groups that collapse on narrow screens.
const ClassHideOnMobile = "hideOnMobile"

// unsupportedPrefix covers personal links the UI cannot route yet.
const unsupportedPrefix = "/groups"

// Normalize converts a user or plugin supplied descriptor into a LinkItem.
//
// A leading '#' is stripped, any target is dropped and the result is always
// external: the backend cannot tell app routes from arbitrary URLs, so every
// provided link gets the same policy.
func Normalize(raw RawLink) (LinkItem, error) {
	if strings.TrimSpace(raw.URL) == "" {
		return LinkItem{}, apperrors.WithMetadata(
			apperrors.CodeLinkURLMissing,
			"link url is required",
			map[string]string{"name": raw.Name},
		)
	}
	return LinkItem{
		URL:      strings.TrimPrefix(raw.URL, "#"),
		Name:     raw.Name,
		External: true,
	}, nil
}

// NormalizeAll normalizes descriptors in order and fails on the first
// malformed one.
func NormalizeAll(raws []RawLink) ([]LinkItem, error) {
	out := make([]LinkItem, 0, len(raws))
	for idx, raw := range raws {
		item, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", idx, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// IsSupported reports whether a personal link can be shown.
func IsSupported(item LinkItem) bool {
	return !strings.HasPrefix(item.URL, unsupportedPrefix)
}

// UserLinks normalizes preference links and drops unsupported ones.
func UserLinks(raws []RawLink) ([]LinkItem, error) {
	items, err := NormalizeAll(raws)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, item := range items {
		if IsSupported(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func cloneLinks(links []LinkItem) []LinkItem {
	out := make([]LinkItem, len(links))
	copy(out, links)
	return out
}
