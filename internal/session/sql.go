package session

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/internal/utils/databaseutils"
)

const createSlotsTable = `CREATE TABLE IF NOT EXISTS slots (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// SQLStore keeps the slot as a row of the slots table. It works with both
// SQLite and Postgres; queries are written with `?` and rebound per dialect.
type SQLStore struct {
	db          *sql.DB
	sqlTemplate *databaseutils.SQLTemplate
	session     databaseutils.Session
	log         *slog.Logger
	now         func() time.Time
}

func NewSQLStore(ctx context.Context, db *sql.DB, dialect databaseutils.Dialect, log *slog.Logger) (*SQLStore, error) {
	store := &SQLStore{
		db:          db,
		sqlTemplate: databaseutils.NewSQLTemplate(db, 5*time.Second, dialect),
		session:     databaseutils.NewSession(db, log),
		log:         log,
		now:         time.Now,
	}

	if _, err := databaseutils.Execute(store.sqlTemplate, ctx, createSlotsTable); err != nil {
		return nil, xerrors.Newf("create slots table: %w", err)
	}
	return store, nil
}

func (s *SQLStore) Save(ctx context.Context, credential string) error {
	err := s.session.DoTransactionally(ctx, func(txCtx context.Context) error {
		if _, err := databaseutils.Execute(s.sqlTemplate, txCtx, `DELETE FROM slots WHERE name = ?`, SlotName); err != nil {
			return err
		}
		_, err := databaseutils.Execute(s.sqlTemplate, txCtx,
			`INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)`,
			SlotName, credential, s.now().Unix())
		return err
	})
	if err != nil {
		return xerrors.Newf("save credential: %w", err)
	}
	return nil
}

func (s *SQLStore) Read(ctx context.Context) (string, bool, error) {
	credential, err := databaseutils.ExecuteSingleQuery(s.sqlTemplate, ctx,
		`SELECT value FROM slots WHERE name = ?`,
		func(rows *sql.Rows) (string, error) {
			var value string
			err := rows.Scan(&value)
			return value, err
		}, SlotName)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, xerrors.Newf("read credential: %w", err)
	}
	return credential, credential != "", nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := databaseutils.Execute(s.sqlTemplate, ctx, `DELETE FROM slots WHERE name = ?`, SlotName); err != nil {
		return xerrors.Newf("clear credential: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
