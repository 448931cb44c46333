package core_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikardbq/serf/internal/core"
	"github.com/rikardbq/serf/internal/serfproto"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestExecuteQueryBindsArgsInOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(a TEXT, b INTEGER, c REAL, d BLOB)")
	require.NoError(t, err)

	insert := core.NewAppliedQuery("INSERT INTO t(a, b, c, d) VALUES(?, ?, ?, ?)").WithArgs(
		serfproto.StringArg("x"),
		serfproto.Int64Arg(7),
		serfproto.DoubleArg(1.5),
		serfproto.BytesArg([]byte{1, 2, 3}),
	)
	res, err := core.ExecuteQuery(ctx, insert, db)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.RowsAffected)
	assert.Equal(t, uint64(1), res.LastInsertRowID)

	var a string
	var b int64
	var c float64
	var d []byte
	err = db.QueryRowContext(ctx, "SELECT a, b, c, d FROM t").Scan(&a, &b, &c, &d)
	require.NoError(t, err)
	assert.Equal(t, "x", a)
	assert.Equal(t, int64(7), b)
	assert.Equal(t, 1.5, c)
	assert.Equal(t, []byte{1, 2, 3}, d)
}

func TestExecuteQuerySurfacesEngineError(t *testing.T) {
	db := testDB(t)

	_, err := core.ExecuteQuery(context.Background(), core.NewAppliedQuery("INSERT INTO missing VALUES(1)"), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table: missing")
}

func TestFetchAllAsJSONPortableRows(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(id INTEGER PRIMARY KEY, a TEXT, b TEXT, c INTEGER)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t(id, a, b, c) VALUES(1, "v1", "v2", 123)`)
	require.NoError(t, err)

	query := core.NewAppliedQuery("SELECT * FROM t WHERE id = ?").WithArgs(serfproto.Int64Arg(1))
	rows, err := core.FetchAllAsJSON(ctx, query, db)
	require.NoError(t, err)

	expected := []map[string]any{
		{"id": int64(1), "a": "v1", "b": "v2", "c": int64(123)},
	}
	assert.Equal(t, expected, rows)
}

func TestFetchAllAsJSONDeclaredTypeMapping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(v VARCHAR(16), f FLOAT, n INTEGER, d BLOB)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t(v, f, n, d) VALUES(?, ?, NULL, ?)",
		"text", 2.5, []byte{1, 2, 3})
	require.NoError(t, err)

	rows, err := core.FetchAllAsJSON(ctx, core.NewAppliedQuery("SELECT * FROM t"), db)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "text", rows[0]["v"])
	assert.Equal(t, 2.5, rows[0]["f"])
	assert.Nil(t, rows[0]["n"])
	assert.Equal(t, core.Blob{1, 2, 3}, rows[0]["d"])
}

func TestFetchAllAsJSONBlobMarshalsAsByteArray(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(d BLOB)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t(d) VALUES(?)", []byte{0, 128, 255})
	require.NoError(t, err)

	rows, err := core.FetchAllAsJSON(ctx, core.NewAppliedQuery("SELECT d FROM t"), db)
	require.NoError(t, err)

	blob, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"d":[0,128,255]}]`, string(blob))
}

func TestFetchAllAsJSONEmptyResult(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(id INTEGER)")
	require.NoError(t, err)

	rows, err := core.FetchAllAsJSON(ctx, core.NewAppliedQuery("SELECT * FROM t"), db)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{}, rows)

	blob, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(blob))
}

func TestWithTransactionCommitsOnNil(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(id INTEGER)")
	require.NoError(t, err)

	err = core.WithTransaction(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO t(id) VALUES(1)")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t(id INTEGER)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = core.WithTransaction(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO t(id) VALUES(1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 0, count)
}
