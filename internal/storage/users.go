// internal/storage/users.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rikardbq/serf/internal/core"
	"github.com/rikardbq/serf/internal/domain"
	"github.com/rikardbq/serf/internal/logger"
)

var customLog = logger.NewLogger()

// UserDBHash is the fixed directory and file stem of the user store:
// hex sha256 of "cfg_root_db_path".
const UserDBHash = "8d2394ce9279fee08d05ba52c882c6ca665b810fbdbf0cbc8ebe4a41364f7c11"

// UserStorePath returns the user-store database file under rootDir.
func UserStorePath(rootDir string) string {
	return filepath.Join(rootDir, "cfg", UserDBHash, UserDBHash+".db")
}

// ConnectUserStore opens the user-store database and ensures its tables exist.
func ConnectUserStore(ctx context.Context, rootDir string) (*sql.DB, error) {
	dbPath := UserStorePath(rootDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create user store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to user store: %w", err)
	}

	if _, err := db.ExecContext(ctx, core.CreateUsersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure users table: %w", err)
	}
	if _, err := db.ExecContext(ctx, core.CreateUsersDatabaseAccessTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure users_database_access table: %w", err)
	}

	return db, nil
}

// LoadUsers reads the user rows joined with their access rows and folds the
// per-user access rights into a database-name -> level map.
func LoadUsers(ctx context.Context, db *sql.DB) (map[string]*domain.User, error) {
	rows, err := db.QueryContext(ctx, core.GetUsersAndAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*domain.User)
	for rows.Next() {
		var username, usernameHash, passwordHash, database string
		var accessRight uint8
		if err := rows.Scan(&username, &usernameHash, &passwordHash, &database, &accessRight); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}

		user, ok := users[usernameHash]
		if !ok {
			user = &domain.User{
				Username:             username,
				UsernameHash:         usernameHash,
				UsernamePasswordHash: passwordHash,
				DatabaseAccess:       make(map[string]uint8),
			}
			users[usernameHash] = user
		}
		user.DatabaseAccess[database] = accessRight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	return users, nil
}

// Directory is the in-memory user directory. The snapshot is published by
// atomic pointer swap: readers holding a snapshot see a consistent view for
// its lifetime, reloads never mutate an in-use snapshot.
type Directory struct {
	snapshot atomic.Pointer[map[string]*domain.User]
}

func NewDirectory() *Directory {
	d := &Directory{}
	empty := make(map[string]*domain.User)
	d.snapshot.Store(&empty)
	return d
}

// Get looks the user up in the current snapshot.
func (d *Directory) Get(usernameHash string) (*domain.User, bool) {
	user, ok := (*d.snapshot.Load())[usernameHash]
	return user, ok
}

// Len reports the number of users in the current snapshot.
func (d *Directory) Len() int {
	return len(*d.snapshot.Load())
}

// Reload computes a new snapshot from the user store and publishes it
// atomically. On error the current snapshot is retained.
func (d *Directory) Reload(ctx context.Context, db *sql.DB) error {
	users, err := LoadUsers(ctx, db)
	if err != nil {
		return err
	}
	d.snapshot.Store(&users)
	customLog.Debugf("Storage: User directory reloaded, %d users", len(users))
	return nil
}
