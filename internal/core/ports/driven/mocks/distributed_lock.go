package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock tracks lock names against their expiry time.
type MockDistributedLock struct {
	mu      sync.Mutex
	expires map[string]time.Time

	// Err, when set, fails Acquire and Ping
	Err error
}

func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{expires: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveLocked(name) {
		return false, nil
	}
	m.expires[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	delete(m.expires, name)
	m.mu.Unlock()
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked(name) {
		return fmt.Errorf("extend %s: not held", name)
	}
	m.expires[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.Err
}

// HoldElsewhere simulates another instance holding name for ttl.
func (m *MockDistributedLock) HoldElsewhere(name string, ttl time.Duration) {
	m.mu.Lock()
	m.expires[name] = time.Now().Add(ttl)
	m.mu.Unlock()
}

// Held reports whether name is locked and unexpired.
func (m *MockDistributedLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(name)
}

func (m *MockDistributedLock) liveLocked(name string) bool {
	exp, ok := m.expires[name]
	return ok && time.Now().Before(exp)
}
