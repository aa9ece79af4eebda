// Package session gates authenticated requests behind a valid bearer
// credential and reacts uniformly to authentication failure.
package session

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
)

// Paths that must never trigger the purge-and-redirect reaction: failing
// here is part of signing in, and redirecting would loop.
var exemptPathPrefixes = []string{"/auth", "/users/me"}

type Guard struct {
	store     *SecureStore
	log       *logger.Logger
	now       func() time.Time
	onSignOut func()
}

func NewGuard(store *SecureStore, onSignOut func(), log *logger.Logger) *Guard {
	return NewGuardWithNow(store, onSignOut, log, time.Now)
}

func NewGuardWithNow(store *SecureStore, onSignOut func(), log *logger.Logger, now func() time.Time) *Guard {
	if log == nil {
		log = logger.NewNop()
	}
	return &Guard{store: store, log: log, now: now, onSignOut: onSignOut}
}

// LoadCredential reads the persisted credential. A missing, malformed or
// expired value yields absent; anything invalid is also deleted so the next
// read is cheap.
func (g *Guard) LoadCredential() (string, bool) {
	raw, ok := g.store.Get(KeyCredential)
	if !ok {
		return "", false
	}
	if !auth.ValidCredential(raw, g.now()) {
		_ = g.store.Delete(KeyCredential)
		return "", false
	}
	return raw, true
}

// SaveCredential validates the same way LoadCredential does; an invalid
// input behaves as a delete and reports false.
func (g *Guard) SaveCredential(raw string) bool {
	if !auth.ValidCredential(raw, g.now()) {
		_ = g.store.Delete(KeyCredential)
		return false
	}
	if err := g.store.Set(KeyCredential, raw); err != nil {
		g.log.Warn("persist credential failed", zap.Error(err))
		return false
	}
	return true
}

// SignOut purges the credential and every auxiliary key, then fires the
// sign-out hook. Fire-and-forget: nothing is retried.
func (g *Guard) SignOut() {
	if err := g.store.Clear(); err != nil {
		g.log.Warn("clear secure store failed", zap.Error(err))
	}
	if g.onSignOut != nil {
		g.onSignOut()
	}
}

// HandleFailure applies the session-level reaction to a failed request and
// reports whether the session was ended. Branches, in order: no response at
// all, unauthorized status, anything else. The first two purge and redirect
// unless the target path belongs to the auth flow itself.
func (g *Guard) HandleFailure(path string, status int, received bool) bool {
	if !received {
		if isExemptPath(path) {
			return false
		}
		g.log.Info("no response received, ending session", zap.String("path", path))
		g.SignOut()
		return true
	}
	if status == http.StatusUnauthorized {
		if isExemptPath(path) {
			return false
		}
		g.log.Info("unauthorized response, ending session", zap.String("path", path))
		g.SignOut()
		return true
	}
	return false
}

func isExemptPath(path string) bool {
	for _, prefix := range exemptPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Transport wraps an http.RoundTripper so every outgoing request carries the
// bearer header when a valid credential exists. This is the pre-send hook:
// the credential is re-read (and re-validated) before every call.
func (g *Guard) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &guardTransport{guard: g, base: base}
}

type guardTransport struct {
	guard *Guard
	base  http.RoundTripper
}

func (t *guardTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if cred, ok := t.guard.LoadCredential(); ok {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+cred)
	}
	return t.base.RoundTrip(req)
}
