//go:build integration

// Package containers starts the Redis and PostgreSQL instances used by
// integration tests. Run them with -tags integration; Docker is required.
package containers

import (
	"sync"
	"testing"
)

// Manager shares one container per backend across a test binary. Ryuk
// removes the containers when the binary exits.
type Manager struct {
	mu       sync.Mutex
	redis    *RedisContainer
	postgres *PostgresContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process wide Manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

// GetRedis starts Redis on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = startRedis(t)
	}
	return m.redis
}

// GetPostgres starts PostgreSQL on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = startPostgres(t)
	}
	return m.postgres
}
