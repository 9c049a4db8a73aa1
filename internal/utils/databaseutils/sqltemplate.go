package databaseutils

import (
	"context"
	"database/sql"
	"time"

	"github.com/siahsang/beatpost/internal/utils/stringutils"
)

// Dialect selects the placeholder style of the queries sent through a SQLTemplate.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type SQLTemplate struct {
	DB      *sql.DB
	Timeout time.Duration
	Dialect Dialect
}

func NewSQLTemplate(db *sql.DB, timeout time.Duration, dialect Dialect) *SQLTemplate {
	return &SQLTemplate{
		DB:      db,
		Timeout: timeout,
		Dialect: dialect,
	}
}

// Bind converts a query written with `?` placeholders to the template's dialect.
func (t *SQLTemplate) Bind(query string) string {
	if t.Dialect == DialectPostgres {
		return stringutils.Rebind(query)
	}
	return query
}

func (t *SQLTemplate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Timeout)
}

func ExecuteQuery[T any](sqlTemplate *SQLTemplate, ctx context.Context, query string, extractor func(rows *sql.Rows) (T, error), args ...any) ([]T, error) {
	ctx, cancel := sqlTemplate.withTimeout(ctx)
	defer cancel()

	executor := GetSQLExecutor(ctx, sqlTemplate.DB)
	rows, err := executor.QueryContext(ctx, sqlTemplate.Bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		t, err := extractor(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// ExecuteSingleQuery runs the query and returns the first row, or sql.ErrNoRows.
func ExecuteSingleQuery[T any](sqlTemplate *SQLTemplate, ctx context.Context, query string, extractor func(rows *sql.Rows) (T, error), args ...any) (T, error) {
	var zero T
	results, err := ExecuteQuery(sqlTemplate, ctx, query, extractor, args...)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, sql.ErrNoRows
	}
	return results[0], nil
}

func Execute(sqlTemplate *SQLTemplate, ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := sqlTemplate.withTimeout(ctx)
	defer cancel()

	executor := GetSQLExecutor(ctx, sqlTemplate.DB)
	return executor.ExecContext(ctx, sqlTemplate.Bind(query), args...)
}
