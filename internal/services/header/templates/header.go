// Package templates renders the navigation header as an HTML fragment.
package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/navheader/internal/services/header/controller"
	"github.com/louisbranch/navheader/internal/services/header/menu"
)

// HeaderText holds the localized chrome strings around the menu.
type HeaderText struct {
	Home     string
	SignIn   string
	Settings string
	Degraded string
	// Notices are localized descriptions of each failing source.
	Notices []string
}

// HeaderOptions configures Header.
type HeaderOptions struct {
	Lang        string
	Snapshot    controller.Snapshot
	HomeURL     string
	LoginURL    string
	SettingsURL string
	Text        HeaderText
}

// Header renders the menu groups and the account area.
func Header(opts HeaderOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<header class="nav-header"`)
		if lang := strings.TrimSpace(opts.Lang); lang != "" {
			hw.attr("lang", lang)
		}
		hw.raw(`><nav>`)
		if opts.HomeURL != "" {
			hw.raw(`<a class="nav-header__home"`)
			hw.attr("href", string(templ.URL(opts.HomeURL)))
			hw.raw(`>`)
			hw.text(opts.Text.Home)
			hw.raw(`</a>`)
		}
		hw.raw(`<ul class="nav-header__groups">`)
		for _, group := range opts.Snapshot.Groups {
			writeGroup(hw, group)
		}
		hw.raw(`</ul>`)
		writeAccount(hw, opts)
		hw.raw(`</nav></header>`)
		return hw.err
	})
}

func writeGroup(hw *htmlWriter, group menu.LinkGroup) {
	hw.raw(`<li`)
	hw.attr("class", strings.TrimSpace("nav-header__group "+group.Class))
	hw.raw(`><span class="nav-header__title">`)
	hw.text(group.Title)
	hw.raw(`</span><ul>`)
	for _, link := range group.Links {
		hw.raw(`<li><a`)
		hw.attr("href", string(templ.URL(link.URL)))
		if link.Target != "" {
			hw.attr("target", link.Target)
			hw.attr("rel", "noopener")
		}
		if link.External {
			hw.attr("data-external", "true")
		}
		hw.raw(`>`)
		hw.text(link.Name)
		hw.raw(`</a></li>`)
	}
	hw.raw(`</ul></li>`)
}

func writeAccount(hw *htmlWriter, opts HeaderOptions) {
	snap := opts.Snapshot
	hw.raw(`<div class="nav-header__account">`)
	if snap.Degraded && opts.Text.Degraded != "" {
		hw.raw(`<span class="nav-header__degraded"`)
		if len(opts.Text.Notices) > 0 {
			hw.attr("title", strings.Join(opts.Text.Notices, "\n"))
		}
		hw.raw(` role="status">`)
		hw.text(opts.Text.Degraded)
		hw.raw(`</span>`)
	}
	switch {
	case snap.Loading:
	case snap.LoggedIn:
		hw.raw(`<span class="nav-header__user">`)
		hw.text(snap.Account.DisplayName())
		hw.raw(`</span><a class="nav-header__settings"`)
		hw.attr("href", string(templ.URL(opts.SettingsURL)))
		hw.raw(`>`)
		hw.text(opts.Text.Settings)
		hw.raw(`</a>`)
	default:
		if snap.Registration.Visible() {
			hw.raw(`<a class="nav-header__register"`)
			hw.attr("href", string(templ.URL(snap.Registration.URL)))
			hw.raw(`>`)
			hw.text(snap.Registration.Text)
			hw.raw(`</a>`)
		}
		hw.raw(`<a class="nav-header__login"`)
		hw.attr("href", string(templ.URL(opts.LoginURL)))
		hw.raw(`>`)
		hw.text(opts.Text.SignIn)
		hw.raw(`</a>`)
	}
	hw.raw(`</div>`)
}

// htmlWriter keeps the first write error so rendering code stays linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) attr(name, value string) {
	hw.raw(` ` + name + `="` + templ.EscapeString(value) + `"`)
}
