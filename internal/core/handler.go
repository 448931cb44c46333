package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rikardbq/serf/internal/serfproto"
)

// Access levels required per subject.
const (
	AccessRead    uint8 = 1
	AccessWrite   uint8 = 2
	AccessMigrate uint8 = 2
)

// RequestHandler handles the three request subjects, returning a signed
// response envelope or a classified *Error.
type RequestHandler interface {
	HandleFetch(ctx context.Context, query *serfproto.QueryRequest) (*serfproto.ProtoPackage, error)
	HandleMutate(ctx context.Context, query *serfproto.QueryRequest) (*serfproto.ProtoPackage, error)
	HandleMigrate(ctx context.Context, migration *serfproto.MigrationRequest) (*serfproto.ProtoPackage, error)
}

// QueryHandler executes requests against one database pool with one user's
// access level and signing secret.
type QueryHandler struct {
	access uint8
	secret string
	db     *sql.DB
	clock  func() time.Time
}

func NewQueryHandler(access uint8, secret string, db *sql.DB) *QueryHandler {
	return &QueryHandler{
		access: access,
		secret: secret,
		db:     db,
		clock:  time.Now,
	}
}

// WithClock overrides the time source used when signing responses.
func (h *QueryHandler) WithClock(clock func() time.Time) *QueryHandler {
	h.clock = clock
	return h
}

func (h *QueryHandler) sign(dat serfproto.Dat) (*serfproto.ProtoPackage, error) {
	pkg, err := serfproto.NewPackage().
		WithData(dat).
		WithSubject(serfproto.SubData).
		WithClock(h.clock).
		Sign(h.secret)
	if err != nil {
		return nil, NewError(serfproto.ErrorSourceUndefined, err.Error())
	}
	return pkg, nil
}

// HandleFetch runs a read query and returns the portable rows as a signed
// FetchResponse.
func (h *QueryHandler) HandleFetch(ctx context.Context, query *serfproto.QueryRequest) (*serfproto.ProtoPackage, error) {
	if h.access < AccessRead {
		return nil, UserNotAllowedError()
	}

	rows, err := FetchAllAsJSON(ctx, NewAppliedQuery(query.Sql).WithArgs(query.Args...), h.db)
	if err != nil {
		return nil, DatabaseError(err.Error())
	}

	blob, err := json.Marshal(rows)
	if err != nil {
		return nil, NewError(serfproto.ErrorSourceUndefined, err.Error())
	}

	return h.sign(&serfproto.FetchResponse{Rows: blob})
}

// HandleMutate runs a write query inside a transaction and returns the
// execution metadata as a signed MutationResponse.
func (h *QueryHandler) HandleMutate(ctx context.Context, query *serfproto.QueryRequest) (*serfproto.ProtoPackage, error) {
	if h.access < AccessWrite {
		return nil, UserNotAllowedError()
	}

	var res ExecResult
	err := WithTransaction(ctx, h.db, func(tx *sql.Tx) error {
		var execErr error
		res, execErr = ExecuteQuery(ctx, NewAppliedQuery(query.Sql).WithArgs(query.Args...), tx)
		return execErr
	})
	if err != nil {
		return nil, DatabaseError(err.Error())
	}

	return h.sign(&serfproto.MutationResponse{
		RowsAffected:    res.RowsAffected,
		LastInsertRowID: res.LastInsertRowID,
	})
}

// HandleMigrate applies a named migration. The tracker insert and the
// migration SQL share one transaction: a duplicate name rolls back and is an
// error, a failing migration body rolls back and is reported in-band as
// applied=false since the tracker stays consistent with the schema.
func (h *QueryHandler) HandleMigrate(ctx context.Context, migration *serfproto.MigrationRequest) (*serfproto.ProtoPackage, error) {
	if h.access < AccessMigrate {
		return nil, UserNotAllowedError()
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, DatabaseError(err.Error())
	}

	if _, err := ExecuteQuery(ctx, NewAppliedQuery(CreateMigrationsTable), tx); err != nil {
		_ = tx.Rollback()
		return nil, DatabaseError(err.Error())
	}

	insert := NewAppliedQuery(InsertMigration).WithArgs(
		serfproto.StringArg(migration.Name),
		serfproto.StringArg(migration.Sql),
	)
	if _, err := ExecuteQuery(ctx, insert, tx); err != nil {
		_ = tx.Rollback()
		return nil, DatabaseError(err.Error())
	}

	if _, err := ExecuteQuery(ctx, NewAppliedQuery(migration.Sql), tx); err != nil {
		_ = tx.Rollback()
		return h.sign(&serfproto.MigrationResponse{Applied: false})
	}

	if err := tx.Commit(); err != nil {
		return nil, DatabaseError(err.Error())
	}

	return h.sign(&serfproto.MigrationResponse{Applied: true})
}

// GetProtoPackageResult dispatches claims to the handler matching the
// (subject, payload) pairing. Any other pairing is undefined.
func GetProtoPackageResult(ctx context.Context, claims *serfproto.Claims, handler RequestHandler) (*serfproto.ProtoPackage, error) {
	switch dat := claims.Dat.(type) {
	case *serfproto.QueryRequest:
		switch claims.Sub {
		case serfproto.SubFetch:
			return handler.HandleFetch(ctx, dat)
		case serfproto.SubMutate:
			return handler.HandleMutate(ctx, dat)
		}
	case *serfproto.MigrationRequest:
		if claims.Sub == serfproto.SubMigrate {
			return handler.HandleMigrate(ctx, dat)
		}
	}

	return nil, UndefinedError()
}
