package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// StateStore is the persisted half of the session: two values, a token and
// a serialized user payload, written together on login and cleared together
// on logout. An empty string means the value is absent.
type StateStore interface {
	Load() (token, user string, err error)
	Save(token, user string) error
	Clear() error
}

type stateFile struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

// FileStore keeps the session state in a single JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore uses path for the state file, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load() (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return "", "", err
	}
	return state.Token, state.User, nil
}

func (f *FileStore) Save(token, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(stateFile{Token: token, User: user})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStore is an in-process StateStore for tests and embedded use.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	user  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.user, nil
}

func (m *MemoryStore) Save(token, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = user
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = ""
	return nil
}
