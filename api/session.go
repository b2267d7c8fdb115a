/*
session.go - Session store and authentication middleware

PURPOSE:
  Gates user endpoints behind bearer-token sessions. Sessions are created by
  the guest sign-in endpoint and resolved to a user ID by middleware, so
  handlers never parse credentials themselves.

DESIGN:
  SessionStore is an interface with Create/Lookup/Invalidate. The default
  implementation is in-memory: sessions are cheap, self-expiring, and losing
  them on restart only forces a new guest sign-in. Swapping in a persistent
  store requires no handler changes.

SEE ALSO:
  - handlers.go: GuestSignIn / SignOut endpoints
  - server.go: Where the middleware is mounted
*/
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// Session links a bearer token to a user.
type Session struct {
	Token     string
	UserID    credit.UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore handles session lifecycle.
type SessionStore interface {
	// Create mints a new session for the user.
	Create(ctx context.Context, userID credit.UserID, ttl time.Duration) (*Session, error)

	// Lookup resolves a token to its session, or nil if unknown or expired.
	Lookup(ctx context.Context, token string) (*Session, error)

	// Invalidate removes a session. Unknown tokens are a no-op.
	Invalidate(ctx context.Context, token string) error
}

// MemorySessionStore is the in-memory SessionStore. Expired sessions are
// dropped lazily on lookup.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		clock:    time.Now,
	}
}

func (m *MemorySessionStore) Create(ctx context.Context, userID credit.UserID, ttl time.Duration) (*Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	now := m.clock().UTC()
	s := &Session{
		Token:     hex.EncodeToString(buf),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemorySessionStore) Lookup(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if m.clock().After(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, nil
	}
	return s, nil
}

func (m *MemorySessionStore) Invalidate(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDFrom returns the authenticated user ID stored by RequireSession.
func UserIDFrom(ctx context.Context) credit.UserID {
	id, _ := ctx.Value(userIDKey).(credit.UserID)
	return id
}

// RequireSession resolves the Authorization bearer token to a user ID and
// rejects requests without a live session.
func RequireSession(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			s, err := sessions.Lookup(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Session lookup failed", err)
				return
			}
			if s == nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired session", nil)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, s.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
