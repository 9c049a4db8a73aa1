package databaseutils

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/mdobak/go-xerrors"
)

type txKey struct{}

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session runs groups of statements in one transaction. Statements issued
// through a SQLTemplate with the context handed to fn join the transaction.
type Session interface {
	DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) error
}

type sqlSession struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSession(db *sql.DB, logger *slog.Logger) Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlSession{db: db, logger: logger}
}

// DoTransactionally commits when fn returns nil and rolls back otherwise. A
// context that already carries a transaction is reused as is.
func (s *sqlSession) DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Newf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("rolling back transaction failed",
					slog.String("rollback_error", rollbackErr.Error()),
					slog.String("error", err.Error()))
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = xerrors.Newf("commit transaction: %w", commitErr)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

// GetSQLExecutor returns the transaction carried by ctx, or fallbackDB.
func GetSQLExecutor(ctx context.Context, fallbackDB *sql.DB) SQLExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallbackDB
}
