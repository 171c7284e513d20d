package menu

import (
	"net/url"
	"strings"

	apperrors "github.com/louisbranch/navheader/internal/platform/errors"
)

// AuthType names the backend's configured authentication method.
type AuthType string

const (
	AuthLDAP            AuthType = "LDAP"
	AuthLDAPBind        AuthType = "LDAP_BIND"
	AuthCustomExtension AuthType = "CUSTOM_EXTENSION"
	AuthOpenID          AuthType = "OPENID"
	AuthOAuth           AuthType = "OAUTH"
	AuthHTTP            AuthType = "HTTP"
	AuthDevelopment     AuthType = "DEVELOPMENT_BECOME_ANY_ACCOUNT"
)

// AuthConfig is the auth section of the backend server config.
type AuthConfig struct {
	AuthType     AuthType `json:"auth_type"`
	RegisterURL  string   `json:"register_url,omitempty"`
	RegisterText string   `json:"register_text,omitempty"`
}

// Registration describes the header's sign-up action.
type Registration struct {
	URL  string `json:"url,omitempty"`
	Text string `json:"text"`
}

// Visible reports whether the sign-up action should be shown.
func (r Registration) Visible() bool {
	return r.URL != ""
}

// SupportsRegisterURL reports whether t can provide a custom registration page.
func (t AuthType) SupportsRegisterURL() bool {
	switch t {
	case AuthLDAP, AuthLDAPBind, AuthCustomExtension:
		return true
	default:
		return false
	}
}

// ResolveRegistration decides whether and how to expose sign-up.
//
// A register URL that does not parse yields a configuration error alongside a
// hidden registration; callers render the hidden value either way.
func ResolveRegistration(cfg AuthConfig, defaultText string) (Registration, error) {
	hidden := Registration{Text: defaultText}
	if !cfg.AuthType.SupportsRegisterURL() {
		return hidden, nil
	}
	registerURL := strings.TrimSpace(cfg.RegisterURL)
	if registerURL != "" {
		if _, err := url.Parse(registerURL); err != nil {
			return hidden, apperrors.Wrap(apperrors.CodeConfigurationInvalid, "parse register url", err)
		}
	}
	out := Registration{URL: registerURL, Text: defaultText}
	if text := strings.TrimSpace(cfg.RegisterText); text != "" {
		out.Text = text
	}
	return out, nil
}

// ServerConfig is the part of the backend server config the header reads.
type ServerConfig struct {
	Auth AuthConfig
	// DocURL is the operator configured documentation base, if any.
	DocURL string
}
