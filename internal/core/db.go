package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Driver registration

	"github.com/rikardbq/serf/internal/serfproto"
)

// Executor abstracts the query target so the same adapter runs against a pool
// or a live transaction. Satisfied by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// AppliedQuery pairs a parameterized statement with its positional arguments.
type AppliedQuery struct {
	Query string
	Args  []*serfproto.QueryArg
}

func NewAppliedQuery(query string) AppliedQuery {
	return AppliedQuery{Query: query}
}

func (q AppliedQuery) WithArgs(args ...*serfproto.QueryArg) AppliedQuery {
	q.Args = args
	return q
}

func (q AppliedQuery) bindArgs() []any {
	if len(q.Args) == 0 {
		return nil
	}
	bound := make([]any, 0, len(q.Args))
	for _, arg := range q.Args {
		bound = append(bound, arg.BindValue())
	}
	return bound
}

// ExecResult carries the engine's execution metadata for a write.
type ExecResult struct {
	RowsAffected    uint64
	LastInsertRowID uint64
}

// ExecuteQuery binds the arguments in order and executes a non-result-producing
// query. Binding-count mismatches surface the engine's error verbatim.
func ExecuteQuery(ctx context.Context, q AppliedQuery, ex Executor) (ExecResult, error) {
	res, err := ex.ExecContext(ctx, q.Query, q.bindArgs()...)
	if err != nil {
		return ExecResult{}, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return ExecResult{}, err
	}
	lastInsertID, err := res.LastInsertId()
	if err != nil {
		return ExecResult{}, err
	}

	return ExecResult{
		RowsAffected:    uint64(rowsAffected),
		LastInsertRowID: uint64(lastInsertID),
	}, nil
}

// Blob renders BLOB column values as a JSON array of byte values, matching the
// wire contract for portable rows (not base64).
type Blob []byte

func (b Blob) MarshalJSON() ([]byte, error) {
	ints := make([]uint16, len(b))
	for i, v := range b {
		ints[i] = uint16(v)
	}
	return json.Marshal(ints)
}

// FetchAllAsJSON executes a result-producing query and maps every row to a
// column-name -> portable-value object. The portable value is decoded from the
// column's declared type: INTEGER, REAL, TEXT or BLOB; NULLs and unknown
// declared types map to null.
func FetchAllAsJSON(ctx context.Context, q AppliedQuery, ex Executor) ([]map[string]any, error) {
	rows, err := ex.QueryContext(ctx, q.Query, q.bindArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}
	for rows.Next() {
		targets := make([]any, len(columnTypes))
		for i, col := range columnTypes {
			switch normalizeColumnType(col.DatabaseTypeName()) {
			case "INTEGER":
				targets[i] = &sql.NullInt64{}
			case "REAL":
				targets[i] = &sql.NullFloat64{}
			case "TEXT":
				targets[i] = &sql.NullString{}
			case "BLOB":
				targets[i] = &[]byte{}
			default:
				targets[i] = &sql.RawBytes{}
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		jsonRow := make(map[string]any, len(columnTypes))
		for i, col := range columnTypes {
			jsonRow[col.Name()] = portableValue(targets[i])
		}
		result = append(result, jsonRow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func portableValue(target any) any {
	switch v := target.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	case *[]byte:
		if *v != nil {
			return Blob(*v)
		}
	}
	return nil
}

// normalizeColumnType reduces a declared column type like "varchar(250)" to
// one of the storage classes the mapper understands.
func normalizeColumnType(declared string) string {
	declared = strings.ToUpper(declared)
	switch {
	case strings.Contains(declared, "INT"):
		return "INTEGER"
	case strings.Contains(declared, "CHAR"), strings.Contains(declared, "CLOB"), strings.Contains(declared, "TEXT"):
		return "TEXT"
	case strings.Contains(declared, "REAL"), strings.Contains(declared, "FLOA"), strings.Contains(declared, "DOUB"):
		return "REAL"
	case strings.Contains(declared, "BLOB"):
		return "BLOB"
	default:
		return declared
	}
}

// WithTransaction runs fn inside a transaction, committing on nil and rolling
// back on error. The caller sees fn's error unchanged.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
