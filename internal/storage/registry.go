// internal/storage/registry.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrDatabaseNotExist is returned when the target database is not present on
// disk or cannot be opened. The message is part of the wire contract.
var ErrDatabaseNotExist = errors.New("Database does not exist")

// PoolPolicy bounds the connections of a per-database pool.
type PoolPolicy struct {
	MaxConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// Registry maps database names to shared connection pools. Entries are created
// lazily on first use and retained for the process lifetime; at most one pool
// exists per name at any instant.
type Registry struct {
	mu     sync.Mutex
	pools  map[string]*sql.DB
	root   string
	policy PoolPolicy
}

// NewRegistry creates a registry rooted at <rootDir>/db.
func NewRegistry(rootDir string, policy PoolPolicy) *Registry {
	return &Registry{
		pools:  make(map[string]*sql.DB),
		root:   filepath.Join(rootDir, "db"),
		policy: policy,
	}
}

// DatabasePath returns the database file for dbName under the registry root.
func (r *Registry) DatabasePath(dbName string) string {
	return filepath.Join(r.root, dbName, dbName+".db")
}

// GetOrOpen returns the pool for dbName, opening it on first use. Concurrent
// callers for the same absent name may race; the pool stored in the registry
// wins and any loser is discarded.
func (r *Registry) GetOrOpen(ctx context.Context, dbName string) (*sql.DB, error) {
	if strings.Contains(dbName, "..") {
		return nil, ErrDatabaseNotExist
	}

	r.mu.Lock()
	if pool, ok := r.pools[dbName]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	r.mu.Unlock()

	pool, err := r.open(ctx, dbName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[dbName]; ok {
		pool.Close()
		return existing, nil
	}
	r.pools[dbName] = pool
	return pool, nil
}

func (r *Registry) open(ctx context.Context, dbName string) (*sql.DB, error) {
	dbPath := r.DatabasePath(dbName)

	// The registry never creates databases, only opens them.
	if _, err := os.Stat(dbPath); err != nil {
		customLog.Warnf("Storage: Database file %s not found: %v", dbPath, err)
		return nil, ErrDatabaseNotExist
	}

	pool, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		customLog.Warnf("Storage: Failed to open database %s: %v", dbName, err)
		return nil, ErrDatabaseNotExist
	}

	pool.SetMaxOpenConns(r.policy.MaxConns)
	pool.SetConnMaxIdleTime(r.policy.MaxIdleTime)
	pool.SetConnMaxLifetime(r.policy.MaxLifetime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		customLog.Warnf("Storage: Failed to ping database %s: %v", dbName, err)
		return nil, ErrDatabaseNotExist
	}

	return pool, nil
}

// Close closes every pool in the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, pool := range r.pools {
		if err := pool.Close(); err != nil {
			customLog.Warnf("Storage: Failed to close pool %s: %v", name, err)
		}
	}
	r.pools = make(map[string]*sql.DB)
}
