// Package gateway talks to the code-review backend's REST API on behalf of a
// header viewer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/louisbranch/navheader/internal/platform/timeouts"
	"github.com/louisbranch/navheader/internal/services/header/menu"
	"golang.org/x/net/publicsuffix"
)

// xssiPrefix guards JSON responses against script inclusion.
const xssiPrefix = ")]}'"

const maxResponseBytes = 1 << 20

// StatusError reports an unexpected backend status.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.StatusCode)
}

// Client calls one backend. Clients derived with ForViewer share the docs
// probe cache but carry their own cookie jar.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	docs       *docsCache
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Jar is replaced per viewer.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("backend url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute: %q", baseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeouts.BackendRequest},
		docs:       &docsCache{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BasePath returns the backend's path prefix, "" when served at the root.
func (c *Client) BasePath() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.Path
}

// ForViewer returns a client that sends the viewer's cookies to the backend.
func (c *Client) ForViewer(cookies []*http.Cookie) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	jar.SetCookies(c.baseURL, cookies)
	httpClient := *c.httpClient
	httpClient.Jar = jar
	return &Client{baseURL: c.baseURL, httpClient: &httpClient, docs: c.docs}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	return resp, nil
}

// getJSON fetches path into target. ok is false when the backend answered
// 401 or 403.
func (c *Client) getJSON(ctx context.Context, path string, target any) (ok bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(stripXSSI(body), target); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func stripXSSI(body []byte) []byte {
	body = bytes.TrimLeft(body, " \t\r\n")
	if rest, ok := bytes.CutPrefix(body, []byte(xssiPrefix)); ok {
		return rest
	}
	return body
}

// Account returns the signed-in account, or nil for anonymous viewers.
func (c *Client) Account(ctx context.Context) (*menu.Account, error) {
	var account menu.Account
	ok, err := c.getJSON(ctx, "/accounts/self/detail", &account)
	if err != nil || !ok {
		return nil, err
	}
	return &account, nil
}

// TopMenus returns the server configured top menus.
func (c *Client) TopMenus(ctx context.Context) ([]menu.TopMenu, error) {
	var menus []menu.TopMenu
	if _, err := c.getJSON(ctx, "/config/server/top-menus", &menus); err != nil {
		return nil, err
	}
	return menus, nil
}

type serverInfo struct {
	Auth   menu.AuthConfig `json:"auth"`
	Gerrit struct {
		DocURL string `json:"doc_url"`
	} `json:"gerrit"`
}

// ServerConfig returns the auth and documentation settings.
func (c *Client) ServerConfig(ctx context.Context) (menu.ServerConfig, error) {
	var info serverInfo
	ok, err := c.getJSON(ctx, "/config/server/info", &info)
	if err != nil {
		return menu.ServerConfig{}, err
	}
	if !ok {
		return menu.ServerConfig{}, &StatusError{Path: "/config/server/info", StatusCode: http.StatusForbidden}
	}
	return menu.ServerConfig{Auth: info.Auth, DocURL: strings.TrimSpace(info.Gerrit.DocURL)}, nil
}

type preferences struct {
	My []menu.RawLink `json:"my"`
}

// MenuPreferences returns the viewer's personal menu links.
func (c *Client) MenuPreferences(ctx context.Context) ([]menu.RawLink, error) {
	var prefs preferences
	if _, err := c.getJSON(ctx, "/accounts/self/preferences", &prefs); err != nil {
		return nil, err
	}
	return prefs.My, nil
}

// Capabilities returns the viewer's granted global capabilities. Range
// capabilities count as granted.
func (c *Client) Capabilities(ctx context.Context) (map[string]bool, error) {
	var raw map[string]json.RawMessage
	ok, err := c.getJSON(ctx, "/accounts/self/capabilities", &raw)
	if err != nil {
		return nil, err
	}
	granted := make(map[string]bool, len(raw))
	if !ok {
		return granted, nil
	}
	for name, value := range raw {
		switch strings.TrimSpace(string(value)) {
		case "false", "null", "":
			continue
		}
		granted[name] = true
	}
	return granted, nil
}

// DocsBaseURL resolves where documentation lives. A configured docURL wins;
// otherwise the backend is probed once for bundled documentation and the
// answer is cached. An empty result means no documentation.
func (c *Client) DocsBaseURL(ctx context.Context, docURL string) (string, error) {
	if docURL = strings.TrimSpace(docURL); docURL != "" {
		return docURL, nil
	}
	return c.docs.resolve(ctx, c.probeDocs)
}

func (c *Client) probeDocs(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, "/Documentation/index.html")
	if err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil
	}
	return c.BasePath() + "/Documentation", nil
}

// docsCache remembers a successful probe. Failed probes are retried.
type docsCache struct {
	mu     sync.Mutex
	done   bool
	result string
}

func (d *docsCache) resolve(ctx context.Context, probe func(context.Context) (string, error)) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return d.result, nil
	}
	result, err := probe(ctx)
	if err != nil {
		return "", err
	}
	d.result = result
	d.done = true
	return result, nil
}
