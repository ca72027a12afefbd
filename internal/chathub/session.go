package chathub

import (
	"errors"
	"sync"

	"pratojusto/backend/internal/models"
)

// ErrAlreadyBound is returned when a session is bound a second time.
var ErrAlreadyBound = errors.New("session already bound")

// Principal is the verified identity attached to a session.
type Principal struct {
	UserID      uint
	DisplayName string
}

// Name is the principal's external name, the stringified user id. Private
// delivery is keyed off this value.
func (p Principal) Name() string {
	return models.UserKey(p.UserID)
}

// Session is the per-connection state. The principal is set at most once.
type Session struct {
	ConnID string

	mu        sync.RWMutex
	principal *Principal
}

func NewSession(connID string) *Session {
	return &Session{ConnID: connID}
}

func (s *Session) Bind(p Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal != nil {
		return ErrAlreadyBound
	}
	s.principal = &p
	return nil
}

// Principal returns the bound identity, if any.
func (s *Session) Principal() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return Principal{}, false
	}
	return *s.principal, true
}

func (s *Session) Authenticated() bool {
	_, ok := s.Principal()
	return ok
}

// UserID is 0 while the session is unbound.
func (s *Session) UserID() uint {
	p, _ := s.Principal()
	return p.UserID
}
