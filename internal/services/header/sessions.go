package header

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/louisbranch/navheader/internal/services/header/controller"
)

const defaultViewerSessions = 1024

// viewerSession is one viewer's long-lived header state.
type viewerSession struct {
	ctrl *controller.Controller
	// ready is closed once the first Load returned.
	ready chan struct{}
}

// viewerSessions keeps a controller per viewer and language so repeat
// requests refresh the account group of the same controller.
type viewerSessions struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, *viewerSession]
}

func newViewerSessions(size int, ttl time.Duration) *viewerSessions {
	if size <= 0 {
		size = defaultViewerSessions
	}
	return &viewerSessions{lru: expirable.NewLRU[string, *viewerSession](size, nil, ttl)}
}

// acquire returns the session stored under key, building it when absent.
// created reports whether the caller owns the first Load.
func (v *viewerSessions) acquire(key string, build func() *controller.Controller) (session *viewerSession, created bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.lru.Get(key); ok {
		return existing, false
	}
	session = &viewerSession{ctrl: build(), ready: make(chan struct{})}
	v.lru.Add(key, session)
	return session, true
}

func (v *viewerSessions) size() int {
	return v.lru.Len()
}

// viewerKey identifies the viewer by the cookies forwarded to the backend.
// Anonymous viewers without cookies share one session per language.
func viewerKey(r *http.Request, lang string) string {
	sum := sha256.Sum256([]byte(lang + "\x00" + strings.Join(r.Header.Values("Cookie"), "; ")))
	return hex.EncodeToString(sum[:])
}
