package menu

import "strings"

// DocEntry is one documentation page relative to the docs base URL.
type DocEntry struct {
	URL  string
	Name string
}

// docTarget opens documentation outside the app. It is system owned, so
// unlike provided links it survives.
const docTarget = "_blank"

// DocLinks joins base to every catalogue entry, preserving catalogue order.
// An empty base yields no links.
func DocLinks(base string, catalogue []DocEntry) []LinkItem {
	if base == "" || len(catalogue) == 0 {
		return nil
	}
	base = strings.TrimSuffix(base, "/")
	out := make([]LinkItem, 0, len(catalogue))
	for _, entry := range catalogue {
		out = append(out, LinkItem{
			URL:    base + entry.URL,
			Name:   entry.Name,
			Target: docTarget,
		})
	}
	return out
}
