// Package cli implements the administrative operations behind serf-cli:
// provisioning databases and users, and granting per-database access.
package cli

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rikardbq/serf/internal/core"
	"github.com/rikardbq/serf/internal/serfproto"
	"github.com/rikardbq/serf/internal/storage"
)

var (
	ErrDatabaseExists      = errors.New("database already exists")
	ErrInvalidDatabaseName = errors.New("database name format must follow either one or a combination of the patterns [a-z, A-Z, 0-9, _, -]")

	databaseNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Hash returns the hex lowercase SHA-256 of s. The user hash is Hash(username)
// and the signing secret is Hash(username || password); both are part of the
// wire contract.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Manager provisions databases and users under a Serf root directory.
type Manager struct {
	rootDir string
}

func NewManager(rootDir string) *Manager {
	return &Manager{rootDir: rootDir}
}

// Init creates the root layout and bootstraps the user store schema.
func (m *Manager) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(m.rootDir, "db"), 0750); err != nil {
		return err
	}

	db, err := storage.ConnectUserStore(ctx, m.rootDir)
	if err != nil {
		return err
	}
	return db.Close()
}

// CreateDatabase creates <root>/db/<name>/<name>.db. The server never creates
// databases, only this command does.
func (m *Manager) CreateDatabase(ctx context.Context, name string) error {
	if !databaseNamePattern.MatchString(name) {
		return ErrInvalidDatabaseName
	}

	dbDir := filepath.Join(m.rootDir, "db", name)
	dbPath := filepath.Join(dbDir, name+".db")
	if _, err := os.Stat(dbPath); err == nil {
		return ErrDatabaseExists
	}

	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Ping forces the driver to create the file.
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// CreateUser registers a user in the user store. Existing usernames are left
// untouched (INSERT OR IGNORE).
func (m *Manager) CreateUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("must provide username and password")
	}

	db, err := storage.ConnectUserStore(ctx, m.rootDir)
	if err != nil {
		return err
	}
	defer db.Close()

	q := core.NewAppliedQuery(core.InsertUser).WithArgs(
		serfproto.StringArg(username),
		serfproto.StringArg(Hash(username)),
		serfproto.StringArg(Hash(username+password)),
	)
	return core.WithTransaction(ctx, db, func(tx *sql.Tx) error {
		_, err := core.ExecuteQuery(ctx, q, tx)
		return err
	})
}

// ModifyUserAccess grants or updates a user's access level for a database.
func (m *Manager) ModifyUserAccess(ctx context.Context, username, database string, access uint8) error {
	if username == "" || database == "" || access == 0 {
		return errors.New("must provide username, database and access right (1-3)")
	}

	db, err := storage.ConnectUserStore(ctx, m.rootDir)
	if err != nil {
		return err
	}
	defer db.Close()

	q := core.NewAppliedQuery(core.UpsertUserDatabaseAccess).WithArgs(
		serfproto.StringArg(database),
		serfproto.Int64Arg(int64(access)),
		serfproto.StringArg(Hash(username)),
	)
	return core.WithTransaction(ctx, db, func(tx *sql.Tx) error {
		_, err := core.ExecuteQuery(ctx, q, tx)
		return err
	})
}
