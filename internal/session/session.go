package session

import (
	"context"
	"encoding/json"
	"sync"

	"cloudshield/internal/mockapi"
	"cloudshield/internal/model"

	"github.com/sirupsen/logrus"
)

// Manager holds the current authenticated identity and token, delegating the
// actual auth operations to the mock API. It is an explicitly constructed
// object handed to whoever needs it; one instance means one active session.
// Failed operations leave prior state untouched.
type Manager struct {
	api    *mockapi.Service
	state  StateStore
	logger *logrus.Logger

	mu    sync.RWMutex
	user  *model.SessionUser
	token string
}

func NewManager(api *mockapi.Service, state StateStore, logger *logrus.Logger) *Manager {
	return &Manager{api: api, state: state, logger: logger}
}

// Rehydrate restores a persisted session. Both values must be present; a
// user payload that fails to parse discards the session and clears storage.
func (m *Manager) Rehydrate() {
	token, rawUser, err := m.state.Load()
	if err != nil {
		m.logger.Warnf("Failed to load persisted session: %v", err)
		m.clearState()
		return
	}
	if token == "" || rawUser == "" {
		return
	}

	var user model.SessionUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		m.logger.Warnf("Discarding corrupt persisted session: %v", err)
		m.clearState()
		return
	}

	m.mu.Lock()
	m.user = &user
	m.token = token
	m.mu.Unlock()
	m.logger.WithField("email", user.Email).Info("Restored persisted session")
}

// Login authenticates and, on success, stores the session in memory and in
// persistent state.
func (m *Manager) Login(ctx context.Context, email, password string) (*mockapi.AuthResponse, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.establish(resp)
	return resp, nil
}

// Register creates an account and establishes the session like Login.
func (m *Manager) Register(ctx context.Context, name, email, password string) (*mockapi.AuthResponse, error) {
	resp, err := m.api.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	m.establish(resp)
	return resp, nil
}

// Logout ends the session, clearing memory and persistent state.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.mu.Unlock()
	m.clearState()
	return nil
}

// IsAuthenticated reports whether both a user and a token are present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.token != ""
}

// User returns a copy of the session user, or nil when unauthenticated.
func (m *Manager) User() *model.SessionUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) establish(resp *mockapi.AuthResponse) {
	m.mu.Lock()
	user := resp.User
	m.user = &user
	m.token = resp.Token
	m.mu.Unlock()

	raw, err := json.Marshal(resp.User)
	if err != nil {
		m.logger.Warnf("Failed to serialize session user: %v", err)
		return
	}
	if err := m.state.Save(resp.Token, string(raw)); err != nil {
		m.logger.Warnf("Failed to persist session: %v", err)
	}
}

func (m *Manager) clearState() {
	if err := m.state.Clear(); err != nil {
		m.logger.Warnf("Failed to clear persisted session: %v", err)
	}
}
