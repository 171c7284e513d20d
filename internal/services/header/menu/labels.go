package menu

import "golang.org/x/text/message"

// Localizer resolves catalog keys to display text.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Labels holds the localized text the aggregator needs.
type Labels struct {
	Changes       string
	Open          string
	Merged        string
	Abandoned     string
	Personal      string
	Documentation string
	Browse        string
	RegisterText  string
	// Docs is the ordered documentation catalogue with localized names.
	Docs []DocEntry
}

var docKeys = []struct {
	url string
	key string
}{
	{url: "/index.html", key: "header.docs.index"},
	{url: "/user-search.html", key: "header.docs.search"},
	{url: "/user-upload.html", key: "header.docs.upload"},
	{url: "/access-control.html", key: "header.docs.access_control"},
	{url: "/rest-api.html", key: "header.docs.rest_api"},
	{url: "/intro-project-owner.html", key: "header.docs.project_owner"},
}

// LabelsFor resolves labels through loc. A nil loc yields EnglishLabels.
func LabelsFor(loc Localizer) Labels {
	if loc == nil {
		return EnglishLabels()
	}
	docs := make([]DocEntry, 0, len(docKeys))
	for _, doc := range docKeys {
		docs = append(docs, DocEntry{URL: doc.url, Name: loc.Sprintf(doc.key)})
	}
	return Labels{
		Changes:       loc.Sprintf("header.group.changes"),
		Open:          loc.Sprintf("header.link.open"),
		Merged:        loc.Sprintf("header.link.merged"),
		Abandoned:     loc.Sprintf("header.link.abandoned"),
		Personal:      loc.Sprintf("header.group.personal"),
		Documentation: loc.Sprintf("header.group.documentation"),
		Browse:        loc.Sprintf("header.group.browse"),
		RegisterText:  loc.Sprintf("header.register.default"),
		Docs:          docs,
	}
}

// EnglishLabels returns the built-in English labels.
func EnglishLabels() Labels {
	return Labels{
		Changes:       "Changes",
		Open:          "Open",
		Merged:        "Merged",
		Abandoned:     "Abandoned",
		Personal:      "Your",
		Documentation: "Documentation",
		Browse:        "Browse",
		RegisterText:  "Sign up",
		Docs: []DocEntry{
			{URL: "/index.html", Name: "Table of Contents"},
			{URL: "/user-search.html", Name: "Searching"},
			{URL: "/user-upload.html", Name: "Uploading"},
			{URL: "/access-control.html", Name: "Access Controls"},
			{URL: "/rest-api.html", Name: "REST API"},
			{URL: "/intro-project-owner.html", Name: "Project Owner Guide"},
		},
	}
}
