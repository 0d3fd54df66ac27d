package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions is an in-memory bearer-token registry with TTL expiry. Expired
// tokens are purged lazily on lookup and creation.
type Sessions struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]session
	now    func() time.Time
}

type session struct {
	username  string
	expiresAt time.Time
}

// NewSessions creates a session registry. A non-positive ttl falls back to
// 24 hours.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		ttl:    ttl,
		tokens: make(map[string]session),
		now:    time.Now,
	}
}

// Create issues a fresh opaque token for username.
func (s *Sessions) Create(username string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.tokens[token] = session{username: username, expiresAt: s.now().Add(s.ttl)}
	return token
}

// Resolve returns the username behind a token, refusing expired or unknown
// tokens.
func (s *Sessions) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.tokens, token)
		return "", false
	}
	return sess.username, true
}

// Revoke drops a token. Unknown tokens are a no-op.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// RevokeUser drops every token issued to username.
func (s *Sessions) RevokeUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.tokens {
		if sess.username == username {
			delete(s.tokens, token)
		}
	}
}

func (s *Sessions) purgeLocked() {
	now := s.now()
	for token, sess := range s.tokens {
		if now.After(sess.expiresAt) {
			delete(s.tokens, token)
		}
	}
}
