// session tracks which connection is bound to which logged-in user.
// A connection moves Unauthenticated -> Authenticated -> Closed; only
// login is valid while unauthenticated, and a username can be bound to
// at most one connection at a time.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUserAlreadyLoggedIn = errors.New("user already logged in")
	ErrNotLoggedIn         = errors.New("not logged in")
)

type Manager struct {
	mu     sync.Mutex
	byConn map[string]string // connection id -> username
	byUser map[string]string // username -> connection id
}

func NewManager() *Manager {
	return &Manager{
		byConn: map[string]string{},
		byUser: map[string]string{},
	}
}

// NewConnID mints the identifier the server assigns at accept time.
func NewConnID() string {
	return uuid.New().String()
}

// Login binds connID to username. Both an already-bound connection and
// an already-logged-in username are rejected.
func (m *Manager) Login(connID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, bound := m.byConn[connID]; bound {
		return ErrUserAlreadyLoggedIn
	}
	if _, online := m.byUser[username]; online {
		return ErrUserAlreadyLoggedIn
	}
	m.byConn[connID] = username
	m.byUser[username] = connID
	return nil
}

// Logout releases the binding and returns the username it held.
func (m *Manager) Logout(connID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username, ok := m.byConn[connID]
	if !ok {
		return "", ErrNotLoggedIn
	}
	delete(m.byConn, connID)
	delete(m.byUser, username)
	return username, nil
}

// Current returns the username bound to connID, if any.
func (m *Manager) Current(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username, ok := m.byConn[connID]
	return username, ok
}

// Disconnect is Logout for connection loss: never an error.
func (m *Manager) Disconnect(connID string) (string, bool) {
	username, err := m.Logout(connID)
	return username, err == nil
}
