// Package auth holds the login state of one tab: the bearer token and the
// identity of the signed-in user.
package auth

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotLoggedIn is returned when no user is signed in
	ErrNotLoggedIn = errors.New("auth: not logged in")
	// ErrNoToken is returned when the signed-in user has no bearer token
	ErrNoToken = errors.New("auth: no bearer token")
)

// Resolver resolves the current user
type Resolver interface {
	CurrentUser(ctx context.Context) (*Identity, error)
}

// TokenSource supplies the bearer token for outbound calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store is a per-tab login state. It satisfies Resolver and TokenSource.
type Store struct {
	mu       sync.RWMutex
	token    string
	identity *Identity
}

// NewStore returns a logged-out store
func NewStore() *Store {
	return &Store{}
}

// Login records the token and identity. It reports whether the login state
// flipped from logged out to logged in.
func (s *Store) Login(token string, identity Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.identity != nil
	s.token = token
	s.identity = &identity
	return !was
}

// Logout clears the state. It reports whether a user was logged in.
func (s *Store) Logout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.identity != nil
	s.token = ""
	s.identity = nil
	return was
}

func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

func (s *Store) CurrentUser(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return nil, ErrNotLoggedIn
	}
	ident := *s.identity
	return &ident, nil
}

func (s *Store) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return "", ErrNotLoggedIn
	}
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
