// Package session tracks the identity reported by the authentication
// provider. Only the stable user id is consumed.
package session

import (
	"sync"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/observable"
)

type Session struct {
	mu   sync.Mutex
	user *observable.Subject[string]
}

func New(userID string) *Session {
	return &Session{user: observable.NewSubject(userID)}
}

// SetUser records a sign-in, or a sign-out when userID is empty. Repeating
// the current user publishes nothing.
func (s *Session) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user.Value() == userID {
		return
	}
	s.user.Publish(userID)
}

// UserID returns the current user, or "" when signed out.
func (s *Session) UserID() string {
	return s.user.Value()
}

func (s *Session) Authenticated() bool {
	return s.user.Value() != ""
}

// RequireUser returns the current user or ErrNotAuthenticated.
func (s *Session) RequireUser() (string, error) {
	uid := s.user.Value()
	if uid == "" {
		return "", loadout.ErrNotAuthenticated
	}
	return uid, nil
}

// Subscribe streams user changes, starting with the current user.
func (s *Session) Subscribe() (<-chan string, func()) {
	return s.user.Subscribe()
}
