package store

import (
	"context"
	"sync"
)

// Keys of the persisted client state. The layout mirrors the browser
// storage contract the console front-end reads and writes.
const (
	KeyAuthToken       = "auth_token"
	KeyUserData        = "user_data"
	KeyRegisteredUsers = "registered_users"
	KeyJustLoggedOut   = "just_logged_out"
)

// Store persists string-valued state under well-known keys.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-memory Store for tests and ephemeral runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Init(ctx context.Context) error { return nil }

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ Store = (*Memory)(nil)
