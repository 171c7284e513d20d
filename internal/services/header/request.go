package header

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/navheader/internal/services/header/menu"
	"golang.org/x/text/language"
)

// OriginalURIHeader carries the page URI when the header is fetched as a
// subrequest by a proxy.
const OriginalURIHeader = "X-Original-URI"

// resolveLanguage prefers ?lang= over Accept-Language.
func (s *service) resolveLanguage(r *http.Request) language.Tag {
	var preferred []language.Tag
	if raw := strings.TrimSpace(r.URL.Query().Get("lang")); raw != "" {
		if tag, err := language.Parse(raw); err == nil {
			preferred = append(preferred, tag)
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil {
		preferred = append(preferred, tags...)
	}
	return s.catalog.Match(preferred...)
}

// ForwardedHostHeader carries the public host when a proxy fetches the header.
const ForwardedHostHeader = "X-Forwarded-Host"

// resolveHost returns the public host the page was served from.
func resolveHost(r *http.Request) string {
	if forwarded := r.Header.Get(ForwardedHostHeader); forwarded != "" {
		host, _, _ := strings.Cut(forwarded, ",")
		if host = strings.TrimSpace(host); host != "" {
			return host
		}
	}
	return r.Host
}

// resolveLocation returns the page location the login redirect should come
// back to.
func resolveLocation(r *http.Request) menu.Location {
	raw := strings.TrimSpace(r.Header.Get(OriginalURIHeader))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("from"))
	}
	if raw == "" {
		return menu.Location{Path: "/"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return menu.Location{Path: "/"}
	}
	loc := menu.Location{Path: parsed.EscapedPath()}
	if loc.Path == "" {
		loc.Path = "/"
	}
	if parsed.RawQuery != "" {
		loc.Query = "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		loc.Fragment = "#" + parsed.EscapedFragment()
	}
	return loc
}
