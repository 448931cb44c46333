package storage_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikardbq/serf/internal/core"
	"github.com/rikardbq/serf/internal/storage"
)

var testPolicy = storage.PoolPolicy{
	MaxConns:    4,
	MaxIdleTime: time.Minute,
	MaxLifetime: time.Minute,
}

func connectTestStore(t *testing.T) (string, *sql.DB) {
	t.Helper()

	rootDir := t.TempDir()
	db, err := storage.ConnectUserStore(context.Background(), rootDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return rootDir, db
}

func seedUser(t *testing.T, db *sql.DB, username, usernameHash, passwordHash string, access map[string]uint8) {
	t.Helper()

	ctx := context.Background()
	_, err := db.ExecContext(ctx, core.InsertUser, username, usernameHash, passwordHash)
	require.NoError(t, err)
	for database, right := range access {
		_, err := db.ExecContext(ctx, core.UpsertUserDatabaseAccess, database, right, usernameHash)
		require.NoError(t, err)
	}
}

func createDatabaseFile(t *testing.T, rootDir, dbName string) {
	t.Helper()

	dbDir := filepath.Join(rootDir, "db", dbName)
	require.NoError(t, os.MkdirAll(dbDir, 0750))

	db, err := sql.Open("sqlite3", filepath.Join(dbDir, dbName+".db"))
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, db.Close())
}

func TestConnectUserStoreCreatesSchema(t *testing.T) {
	rootDir, db := connectTestStore(t)

	_, err := os.Stat(storage.UserStorePath(rootDir))
	assert.NoError(t, err)

	for _, table := range []string{"users", "users_database_access"} {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).
			Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "expected table %s", table)
	}
}

func TestLoadUsersFoldsAccessRights(t *testing.T) {
	_, db := connectTestStore(t)

	seedUser(t, db, "alice", "hash_a", "secret_a", map[string]uint8{"orders": 2, "logs": 1})
	seedUser(t, db, "bob", "hash_b", "secret_b", map[string]uint8{"orders": 1})
	// No access rows means the user is invisible to the directory.
	seedUser(t, db, "carol", "hash_c", "secret_c", nil)

	users, err := storage.LoadUsers(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, users, 2)

	alice := users["hash_a"]
	require.NotNil(t, alice)
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, "secret_a", alice.UsernamePasswordHash)
	assert.Equal(t, map[string]uint8{"orders": 2, "logs": 1}, alice.DatabaseAccess)
	assert.Equal(t, uint8(2), alice.AccessRight("orders"))
	assert.Equal(t, uint8(0), alice.AccessRight("missing"))

	bob := users["hash_b"]
	require.NotNil(t, bob)
	assert.Equal(t, map[string]uint8{"orders": 1}, bob.DatabaseAccess)
}

func TestDirectoryReloadPublishesSnapshot(t *testing.T) {
	_, db := connectTestStore(t)
	ctx := context.Background()

	directory := storage.NewDirectory()
	assert.Equal(t, 0, directory.Len())

	_, ok := directory.Get("hash_a")
	assert.False(t, ok)

	seedUser(t, db, "alice", "hash_a", "secret_a", map[string]uint8{"orders": 2})
	require.NoError(t, directory.Reload(ctx, db))

	user, ok := directory.Get("hash_a")
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, 1, directory.Len())
}

func TestDirectoryReloadKeepsSnapshotOnError(t *testing.T) {
	_, db := connectTestStore(t)
	ctx := context.Background()

	seedUser(t, db, "alice", "hash_a", "secret_a", map[string]uint8{"orders": 2})

	directory := storage.NewDirectory()
	require.NoError(t, directory.Reload(ctx, db))
	require.NoError(t, db.Close())

	err := directory.Reload(ctx, db)
	assert.Error(t, err)

	// The last good snapshot is still served.
	_, ok := directory.Get("hash_a")
	assert.True(t, ok)
	assert.Equal(t, 1, directory.Len())
}

func TestRegistryGetOrOpenReturnsSharedPool(t *testing.T) {
	rootDir := t.TempDir()
	createDatabaseFile(t, rootDir, "orders")

	registry := storage.NewRegistry(rootDir, testPolicy)
	defer registry.Close()
	ctx := context.Background()

	first, err := registry.GetOrOpen(ctx, "orders")
	require.NoError(t, err)

	second, err := registry.GetOrOpen(ctx, "orders")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryGetOrOpenMissingDatabase(t *testing.T) {
	registry := storage.NewRegistry(t.TempDir(), testPolicy)
	defer registry.Close()

	_, err := registry.GetOrOpen(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrDatabaseNotExist)
	assert.Equal(t, "Database does not exist", err.Error())
}

func TestRegistryGetOrOpenRejectsTraversal(t *testing.T) {
	rootDir := t.TempDir()
	createDatabaseFile(t, rootDir, "orders")

	registry := storage.NewRegistry(rootDir, testPolicy)
	defer registry.Close()

	_, err := registry.GetOrOpen(context.Background(), "../db/orders")
	assert.ErrorIs(t, err, storage.ErrDatabaseNotExist)
}

func TestRegistryDatabasePathLayout(t *testing.T) {
	registry := storage.NewRegistry("/srv/serf", testPolicy)
	assert.Equal(t, filepath.Join("/srv/serf", "db", "orders", "orders.db"), registry.DatabasePath("orders"))
}
