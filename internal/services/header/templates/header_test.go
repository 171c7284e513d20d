package templates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/louisbranch/navheader/internal/services/header/controller"
	"github.com/louisbranch/navheader/internal/services/header/menu"
)

func render(t *testing.T, opts HeaderOptions) string {
	t.Helper()

	var b strings.Builder
	if err := Header(opts).Render(context.Background(), &b); err != nil {
		t.Fatalf("Header().Render() = %v", err)
	}
	return b.String()
}

func baseOptions() HeaderOptions {
	return HeaderOptions{
		Lang: "en-US",
		Snapshot: controller.Snapshot{
			Groups: []menu.LinkGroup{
				{Title: "Changes", Links: []menu.LinkItem{{URL: "/q/status:open", Name: "Open"}}},
				{Title: "Documentation", Class: menu.ClassHideOnMobile, Links: []menu.LinkItem{
					{URL: "/docs/index.html", Name: "Table of Contents", Target: "_blank"},
				}},
			},
			Registration: menu.Registration{URL: "/register", Text: "Sign up"},
		},
		LoginURL:    "/login/%2Fc%2F1",
		SettingsURL: "/settings/",
		Text:        HeaderText{SignIn: "Sign in", Settings: "Settings", Degraded: "Some menus could not be loaded"},
	}
}

func TestHeaderRendersGroupsAndLinks(t *testing.T) {
	t.Parallel()

	got := render(t, baseOptions())
	for _, want := range []string{
		`<header class="nav-header" lang="en-US">`,
		`<span class="nav-header__title">Changes</span>`,
		`<a href="/q/status:open">Open</a>`,
		`class="nav-header__group hideOnMobile"`,
		`<a href="/docs/index.html" target="_blank" rel="noopener">Table of Contents</a>`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestHeaderAnonymousShowsRegisterAndLogin(t *testing.T) {
	t.Parallel()

	got := render(t, baseOptions())
	if !strings.Contains(got, `<a class="nav-header__register" href="/register">Sign up</a>`) {
		t.Fatalf("expected register link in %q", got)
	}
	if !strings.Contains(got, `<a class="nav-header__login" href="/login/%2Fc%2F1">Sign in</a>`) {
		t.Fatalf("expected login link in %q", got)
	}
	if strings.Contains(got, "nav-header__degraded") {
		t.Fatalf("unexpected degraded marker in %q", got)
	}
}

func TestHeaderSignedInShowsSettings(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	opts.Snapshot.LoggedIn = true
	opts.Snapshot.Account = &menu.Account{ID: 1, Name: "Ada <admin>"}
	got := render(t, opts)

	if !strings.Contains(got, `<span class="nav-header__user">Ada &lt;admin&gt;</span>`) {
		t.Fatalf("expected escaped account name in %q", got)
	}
	if !strings.Contains(got, `href="/settings/">Settings</a>`) {
		t.Fatalf("expected settings link in %q", got)
	}
	if strings.Contains(got, "nav-header__login") || strings.Contains(got, "nav-header__register") {
		t.Fatalf("signed-in header should not offer sign in: %q", got)
	}
}

func TestHeaderDegradedMarker(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	opts.Snapshot.Degraded = true
	got := render(t, opts)
	if !strings.Contains(got, `role="status">Some menus could not be loaded</span>`) {
		t.Fatalf("expected degraded marker in %q", got)
	}
}

func TestHeaderHomeLink(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	if got := render(t, opts); strings.Contains(got, "nav-header__home") {
		t.Fatalf("unexpected home link without HomeURL in %q", got)
	}
	opts.HomeURL = "//review.example/r/"
	opts.Text.Home = "Home"
	want := `<nav><a class="nav-header__home" href="//review.example/r/">Home</a><ul class="nav-header__groups">`
	if got := render(t, opts); !strings.Contains(got, want) {
		t.Fatalf("expected %q in %q", want, got)
	}
}

func TestHeaderDegradedNoticesEscaped(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	opts.Snapshot.Degraded = true
	opts.Text.Notices = []string{`Could not load "top_menus".`, "Could not load config."}
	got := render(t, opts)
	want := `title="Could not load &#34;top_menus&#34;.` + "\n" + `Could not load config." role="status">`
	if !strings.Contains(got, want) {
		t.Fatalf("expected escaped notices %q in %q", want, got)
	}
}

func TestHeaderSanitizesUnsafeURLs(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	opts.Snapshot.Groups = []menu.LinkGroup{{Title: "X", Links: []menu.LinkItem{{URL: "javascript:alert(1)", Name: "bad"}}}}
	got := render(t, opts)
	if strings.Contains(got, "javascript:") {
		t.Fatalf("unsafe url rendered: %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestHeaderReturnsWriteError(t *testing.T) {
	t.Parallel()

	if err := Header(baseOptions()).Render(context.Background(), failingWriter{}); err == nil {
		t.Fatal("Render() error = nil, want write error")
	}
}
