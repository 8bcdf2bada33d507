package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Session is an authenticated bearer token.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
}

type sessionTable struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]Session
}

func newSessionTable(ttl time.Duration) *sessionTable {
	return &sessionTable{ttl: ttl, sessions: map[string]Session{}}
}

func (t *sessionTable) create(username string, now time.Time) (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s := Session{Token: hex.EncodeToString(buf), Username: username, CreatedAt: now}

	t.mu.Lock()
	t.sessions[s.Token] = s
	t.mu.Unlock()
	return s, nil
}

// lookup returns the session for token, dropping it if it has expired.
func (t *sessionTable) lookup(token string, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[token]
	if !ok {
		return Session{}, false
	}
	if t.ttl > 0 && now.Sub(s.CreatedAt) >= t.ttl {
		delete(t.sessions, token)
		return Session{}, false
	}
	return s, true
}

func (t *sessionTable) remove(token string) {
	t.mu.Lock()
	delete(t.sessions, token)
	t.mu.Unlock()
}
