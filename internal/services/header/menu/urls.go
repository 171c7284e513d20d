package menu

import (
	"net/url"
	"strings"
)

// DefaultLoginURL is the login target before any location is known.
const DefaultLoginURL = "/login"

// Location is the current client location split the way browsers expose it.
type Location struct {
	Path string
	// Query includes the leading '?', when present.
	Query string
	// Fragment includes the leading '#', when present.
	Fragment string
}

// LoginURL builds a login redirect that returns the user to loc.
//
// With a base path, the base prefix is cut from loc.Path by length (the path
// is assumed to start with base) and the remainder is rooted at a single '/'.
func LoginURL(base string, loc Location) string {
	if base != "" {
		rest := ""
		if len(loc.Path) > len(base) {
			rest = strings.TrimPrefix(loc.Path[len(base):], "/")
		}
		return base + "/login/" + EncodeURIComponent("/"+rest+loc.Query+loc.Fragment)
	}
	return "/login/" + EncodeURIComponent(loc.Path+loc.Query+loc.Fragment)
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s like the browser's encodeURIComponent: only
// ASCII letters, digits and -_.!~*'() are left as is.
func EncodeURIComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// SettingsURL returns the user settings page under base.
func SettingsURL(base string) string {
	return base + "/settings/"
}

// RelativeURL returns a scheme-relative URL for path on host under base.
func RelativeURL(host, base, path string) string {
	return "//" + host + base + path
}
