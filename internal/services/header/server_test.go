package header

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/louisbranch/navheader/internal/platform/i18n/catalog"
	"github.com/louisbranch/navheader/internal/platform/telemetry/metrics"
	"github.com/louisbranch/navheader/internal/services/header/gateway"
	"github.com/louisbranch/navheader/internal/services/header/storage/sqlite"
)

const sessionCookie = "GerritAccount"

// backendOptions shapes the fake backend's answers.
type backendOptions struct {
	failTopMenus bool
	// topMenus replaces the default top-menu payload when set.
	topMenus string
}

// backendHits counts requests per backend path.
type backendHits struct {
	mu     sync.Mutex
	byPath map[string]int
}

func (h *backendHits) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byPath[path]++
}

func (h *backendHits) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byPath[path]
}

// fakeBackend serves the REST endpoints the header reads. Requests carrying
// the session cookie are signed in.
func fakeBackend(t *testing.T, opts backendOptions) (*httptest.Server, *backendHits) {
	t.Helper()

	hits := &backendHits{byPath: map[string]int{}}
	topMenus := `[{"name":"Browse","items":[{"url":"#/x/server-menu","name":"Server Menu"}]}]`
	if opts.topMenus != "" {
		topMenus = opts.topMenus
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r.URL.Path)
		_, err := r.Cookie(sessionCookie)
		signedIn := err == nil
		switch r.URL.Path {
		case "/accounts/self/detail":
			if !signedIn {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `)]}'{"_account_id":1000,"name":"Ada Lovelace"}`)
		case "/accounts/self/preferences":
			_, _ = io.WriteString(w, `)]}'{"my":[{"url":"#/dashboard/self","name":"Dashboard"},{"url":"/groups/self","name":"Groups"}]}`)
		case "/accounts/self/capabilities":
			_, _ = io.WriteString(w, `)]}'{"viewPlugins":true}`)
		case "/config/server/top-menus":
			if opts.failTopMenus {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = io.WriteString(w, `)]}'`+topMenus)
		case "/config/server/info":
			_, _ = io.WriteString(w, `)]}'{"auth":{"auth_type":"LDAP","register_url":"https://id.example/join"},"gerrit":{"doc_url":"https://docs.example/"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

type testEnv struct {
	handler http.Handler
	store   *sqlite.Store
	hits    *backendHits
}

func newTestEnv(t *testing.T, failTopMenus bool) testEnv {
	t.Helper()
	return newTestEnvWith(t, backendOptions{failTopMenus: failTopMenus})
}

func newTestEnvWith(t *testing.T, opts backendOptions) testEnv {
	t.Helper()

	backend, hits := fakeBackend(t, opts)
	client, err := gateway.New(backend.URL)
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "plugins.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	handler, err := NewHandler(Config{
		Backends: GatewayBackends(client),
		Registry: store,
		Catalog:  catalog.Default(),
		Metrics:  metrics.NewRecorder(),
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return testEnv{handler: handler, store: store, hits: hits}
}

type jsonView struct {
	Lang        string `json:"lang"`
	HomeURL     string `json:"homeUrl"`
	LoginURL    string `json:"loginUrl"`
	SettingsURL string `json:"settingsUrl"`
	Header      struct {
		LoggedIn bool `json:"loggedIn"`
		Groups   []struct {
			Title string `json:"title"`
			Links []struct {
				URL  string `json:"url"`
				Name string `json:"name"`
			} `json:"links"`
		} `json:"groups"`
		Registration struct {
			URL  string `json:"url"`
			Text string `json:"text"`
		} `json:"registration"`
		Degraded bool `json:"degraded"`
		Errors   []struct {
			Source string `json:"source"`
			Code   string `json:"code"`
		} `json:"errors"`
	} `json:"header"`
	Notices []string `json:"notices"`
}

func (v jsonView) titles() []string {
	out := make([]string, 0, len(v.Header.Groups))
	for _, group := range v.Header.Groups {
		out = append(out, group.Title)
	}
	return out
}

func (v jsonView) linkNames(title string) []string {
	for _, group := range v.Header.Groups {
		if group.Title == title {
			names := make([]string, 0, len(group.Links))
			for _, link := range group.Links {
				names = append(names, link.Name)
			}
			return names
		}
	}
	return nil
}

func getJSON(t *testing.T, handler http.Handler, req *http.Request) jsonView {
	t.Helper()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var view jsonView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHeaderJSONAnonymous(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.Header.Set(OriginalURIHeader, "/c/123?a=1#x")
	view := getJSON(t, env.handler, req)

	if view.Header.LoggedIn {
		t.Fatal("LoggedIn = true, want false")
	}
	if want := []string{"Changes", "Documentation", "Browse"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
	if want := []string{"Repositories", "Server Menu"}; !equalStrings(view.linkNames("Browse"), want) {
		t.Fatalf("browse = %v, want %v", view.linkNames("Browse"), want)
	}
	if want := "/login/%2Fc%2F123%3Fa%3D1%23x"; view.LoginURL != want {
		t.Fatalf("LoginURL = %q, want %q", view.LoginURL, want)
	}
	if view.Header.Registration.URL != "https://id.example/join" || view.Header.Registration.Text != "Sign up" {
		t.Fatalf("registration = %#v, want LDAP join link", view.Header.Registration)
	}
	if view.Lang != "en-US" {
		t.Fatalf("Lang = %q, want en-US", view.Lang)
	}
}

func TestHeaderJSONSignedIn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s1"})
	view := getJSON(t, env.handler, req)

	if !view.Header.LoggedIn {
		t.Fatal("LoggedIn = false, want true")
	}
	if want := []string{"Changes", "Your", "Documentation", "Browse"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
	if want := []string{"Dashboard"}; !equalStrings(view.linkNames("Your"), want) {
		t.Fatalf("personal = %v, want %v", view.linkNames("Your"), want)
	}
	if want := []string{"Repositories", "Groups", "Plugins", "Server Menu"}; !equalStrings(view.linkNames("Browse"), want) {
		t.Fatalf("browse = %v, want %v", view.linkNames("Browse"), want)
	}
	if view.SettingsURL != "/settings/" {
		t.Fatalf("SettingsURL = %q, want /settings/", view.SettingsURL)
	}
}

func TestHeaderJSONLocalized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/header.json?lang=zh-CN", nil)
	view := getJSON(t, env.handler, req)

	if view.Lang != "zh-CN" {
		t.Fatalf("Lang = %q, want zh-CN", view.Lang)
	}
	if len(view.Header.Groups) == 0 || view.Header.Groups[0].Title != "提交变更" {
		t.Fatalf("titles = %v, want localized defaults", view.titles())
	}
}

func TestHeaderJSONAcceptLanguage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.Header.Set("Accept-Language", "zh;q=0.9, fr;q=0.8")
	view := getJSON(t, env.handler, req)
	if view.Lang != "zh-CN" {
		t.Fatalf("Lang = %q, want zh-CN", view.Lang)
	}
}

func TestHeaderDegradedWhenBackendFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	view := getJSON(t, env.handler, httptest.NewRequest(http.MethodGet, "/header.json", nil))

	if !view.Header.Degraded {
		t.Fatal("Degraded = false, want true")
	}
	if len(view.Header.Errors) != 1 || view.Header.Errors[0].Source != "top_menus" {
		t.Fatalf("errors = %#v, want top_menus failure", view.Header.Errors)
	}
	if view.Header.Errors[0].Code != "DATA_SOURCE_UNAVAILABLE" {
		t.Fatalf("Errors[0].Code = %q, want DATA_SOURCE_UNAVAILABLE", view.Header.Errors[0].Code)
	}
	if want := []string{"Could not load top_menus."}; !equalStrings(view.Notices, want) {
		t.Fatalf("Notices = %v, want %v", view.Notices, want)
	}
	if want := []string{"Changes", "Documentation", "Browse"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
}

func TestHeaderKeepsMenuWhenTopMenuItemMalformed(t *testing.T) {
	t.Parallel()

	env := newTestEnvWith(t, backendOptions{topMenus: `[{"name":"Extra","items":[{"name":"no url"}]}]`})
	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s1"})
	view := getJSON(t, env.handler, req)

	if want := []string{"Changes", "Your", "Documentation", "Browse", "Extra"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
	if want := []string{"Repositories", "Groups", "Plugins"}; !equalStrings(view.linkNames("Browse"), want) {
		t.Fatalf("browse = %v, want %v", view.linkNames("Browse"), want)
	}
	if len(view.Header.Errors) != 1 || view.Header.Errors[0].Source != "menu" || view.Header.Errors[0].Code != "LINK_URL_MISSING" {
		t.Fatalf("errors = %#v, want one menu LINK_URL_MISSING failure", view.Header.Errors)
	}
}

func TestHeaderDegradedWhenBackendUnavailable(t *testing.T) {
	t.Parallel()

	handler, err := NewHandler(Config{
		Backends: func(*http.Request) (Backend, error) { return nil, errors.New("dial backend") },
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	view := getJSON(t, handler, httptest.NewRequest(http.MethodGet, "/header.json", nil))

	if want := []string{"Changes", "Browse"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
	if !view.Header.Degraded || len(view.Header.Errors) != 1 || view.Header.Errors[0].Source != "backend" {
		t.Fatalf("errors = %#v, want backend failure", view.Header.Errors)
	}
	if want := []string{"Could not load backend."}; !equalStrings(view.Notices, want) {
		t.Fatalf("Notices = %v, want %v", view.Notices, want)
	}
	if view.LoginURL != "/login/%2F" {
		t.Fatalf("LoginURL = %q, want /login/%%2F", view.LoginURL)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/header", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "nav-header__degraded") {
		t.Fatalf("GET /header = %d %q, want degraded header", rr.Code, rr.Body.String())
	}
}

func TestHeaderReusesViewerSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	signedIn := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: value})
		return req
	}

	first := getJSON(t, env.handler, signedIn("s1"))
	second := getJSON(t, env.handler, signedIn("s1"))
	if !equalStrings(first.titles(), second.titles()) || !second.Header.LoggedIn {
		t.Fatalf("second view titles = %v, want %v", second.titles(), first.titles())
	}
	if got := env.hits.count("/accounts/self/detail"); got != 2 {
		t.Fatalf("account fetches = %d, want 2", got)
	}
	if got := env.hits.count("/config/server/info"); got != 1 {
		t.Fatalf("config fetches = %d, want 1", got)
	}

	_ = getJSON(t, env.handler, signedIn("s2"))
	if got := env.hits.count("/config/server/info"); got != 2 {
		t.Fatalf("config fetches after new viewer = %d, want 2", got)
	}
}

func TestHeaderHomeURL(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	view := getJSON(t, env.handler, httptest.NewRequest(http.MethodGet, "/header.json", nil))
	if view.HomeURL != "//example.com/" {
		t.Fatalf("HomeURL = %q, want //example.com/", view.HomeURL)
	}

	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.Header.Set(ForwardedHostHeader, "review.example, proxy.internal")
	view = getJSON(t, env.handler, req)
	if view.HomeURL != "//review.example/" {
		t.Fatalf("HomeURL = %q, want //review.example/", view.HomeURL)
	}
}

func TestHeaderHTML(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/header?from=/q/is:open", nil)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`<header class="nav-header" lang="en-US">`,
		`href="/login/%2Fq%2Fis%3Aopen">Sign in</a>`,
		`href="https://docs.example/index.html"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in %q", want, body)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestPluginRegistrationLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)

	body := `{"top_menus":[{"name":"Tools","items":[{"url":"#/x/tools","name":"Tool"}]},{"name":"Browse","items":[{"url":"/x/more","name":"More"}]}],` +
		`"admin_links":[{"text":"Tools Admin","url":"/x/tools/admin","capability":"viewPlugins"}]}`
	put := httptest.NewRequest(http.MethodPut, "/plugins/tools/top-menus", strings.NewReader(body))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, put)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/header.json", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s1"})
	view := getJSON(t, env.handler, req)
	if want := []string{"Changes", "Your", "Documentation", "Browse", "Tools"}; !equalStrings(view.titles(), want) {
		t.Fatalf("titles = %v, want %v", view.titles(), want)
	}
	if want := []string{"Repositories", "Groups", "Plugins", "Tools Admin", "Server Menu", "More"}; !equalStrings(view.linkNames("Browse"), want) {
		t.Fatalf("browse = %v, want %v", view.linkNames("Browse"), want)
	}

	get := httptest.NewRequest(http.MethodGet, "/plugins/tools", nil)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, get)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"plugin":"tools"`) {
		t.Fatalf("GET plugin = %d %s", rr.Code, rr.Body.String())
	}

	del := httptest.NewRequest(http.MethodDelete, "/plugins/tools", nil)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, del)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/plugins/tools", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second DELETE status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPluginRegistrationRejectsBadInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{`},
		{name: "unknown field", body: `{"menus":[]}`},
		{name: "missing url", body: `{"top_menus":[{"name":"Tools","items":[{"name":"broken"}]}]}`},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/plugins/bad/top-menus", strings.NewReader(tt.body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", tt.name, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/header.json", nil))

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "navheader_menu_recomputes_total") {
		t.Fatalf("metrics body missing recompute counter")
	}
}

func TestNewHandlerRequiresBackends(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Config{}); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

func TestNewServerRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewServer(context.Background(), Config{Backends: func(*http.Request) (Backend, error) { return nil, nil }})
	if err == nil {
		t.Fatal("NewServer() error = nil, want error")
	}
}
