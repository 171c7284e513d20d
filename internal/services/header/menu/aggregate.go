package menu

import (
	"errors"
	"fmt"
)

// Input gathers every link source the header merges.
type Input struct {
	Defaults   []LinkGroup
	User       []LinkItem
	Admin      []LinkItem
	TopMenus   []TopMenu
	DocBaseURL string
}

// DefaultGroups returns the built-in change queries group.
func DefaultGroups(labels Labels) []LinkGroup {
	return []LinkGroup{{
		Title: labels.Changes,
		Links: []LinkItem{
			{URL: "/q/status:open", Name: labels.Open},
			{URL: "/q/status:merged", Name: labels.Merged},
			{URL: "/q/status:abandoned", Name: labels.Abandoned},
		},
	}}
}

// Compute merges in into the ordered header menu.
//
// Order is defaults, personal (when non-empty), documentation (when a docs
// base URL is set), browse (always), then top menus. A top menu whose name
// equals an existing title appends into that group; otherwise it becomes a
// new trailing group that later top menus can merge into. When titles repeat,
// the last group with that title receives the merged items.
//
// A top-menu item without a URL is skipped. Compute still returns the full
// menu built from every other input, together with a validation error
// naming each skipped item.
func Compute(in Input, labels Labels) ([]LinkGroup, error) {
	groups := make([]LinkGroup, 0, len(in.Defaults)+3+len(in.TopMenus))
	for _, group := range in.Defaults {
		groups = append(groups, LinkGroup{
			Title: group.Title,
			Links: cloneLinks(group.Links),
			Class: group.Class,
		})
	}
	if len(in.User) > 0 {
		groups = append(groups, LinkGroup{
			Title: labels.Personal,
			Links: cloneLinks(in.User),
		})
	}
	if docs := DocLinks(in.DocBaseURL, labels.Docs); len(docs) > 0 {
		groups = append(groups, LinkGroup{
			Title: labels.Documentation,
			Links: docs,
			Class: ClassHideOnMobile,
		})
	}
	groups = append(groups, LinkGroup{
		Title: labels.Browse,
		Links: cloneLinks(in.Admin),
	})

	// Indexes, not slices: appends below must land in groups itself.
	byTitle := make(map[string]int, len(groups)+len(in.TopMenus))
	for idx, group := range groups {
		byTitle[group.Title] = idx
	}
	var errs []error
	for menuIdx, topMenu := range in.TopMenus {
		items := make([]LinkItem, 0, len(topMenu.Items))
		for itemIdx, raw := range topMenu.Items {
			item, err := Normalize(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("top menu %d %q link %d: %w", menuIdx, topMenu.Name, itemIdx, err))
				continue
			}
			items = append(items, item)
		}
		if idx, ok := byTitle[topMenu.Name]; ok {
			groups[idx].Links = append(groups[idx].Links, items...)
			continue
		}
		byTitle[topMenu.Name] = len(groups)
		groups = append(groups, LinkGroup{
			Title: topMenu.Name,
			Links: items,
		})
	}
	return groups, errors.Join(errs...)
}
