package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/redis/go-redis/v9"
	"github.com/siahsang/beatpost/internal/database"
	"github.com/siahsang/beatpost/internal/utils/databaseutils"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type Options struct {
	Logger      *slog.Logger
	RedisPrefix string
}

// Open builds the Store selected by dsn. An empty dsn selects the default
// file slot. Supported schemes: file, sqlite, postgres, postgresql, redis,
// rediss and memory.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	scheme, rest, found := strings.Cut(dsn, "://")
	if dsn == "" {
		scheme, found = "file", true
	}
	if !found {
		return nil, xerrors.Newf("%w: %q has no scheme", ErrUnsupportedStore, dsn)
	}

	switch scheme {
	case "memory":
		return NewMemoryStore(), nil

	case "file":
		path := rest
		if path == "" {
			defaultPath, err := DefaultPath()
			if err != nil {
				return nil, err
			}
			path = defaultPath
		}
		return NewFileStore(path), nil

	case "sqlite":
		if rest == "" {
			return nil, xerrors.Newf("%w: sqlite store needs a path", ErrUnsupportedStore)
		}
		sqliteDSN := rest
		if !strings.Contains(sqliteDSN, "?") {
			sqliteDSN += "?" + sqlitePragmas
		}
		db, err := database.Open(ctx, database.DriverSQLite, sqliteDSN, log)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, db, databaseutils.DialectSQLite, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil

	case "postgres", "postgresql":
		db, err := database.Open(ctx, database.DriverPostgres, dsn, log)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, db, databaseutils.DialectPostgres, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil

	case "redis", "rediss":
		redisOpts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, xerrors.Newf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, xerrors.Newf("ping redis: %w", err)
		}
		return NewRedisStore(client, opts.RedisPrefix), nil
	}

	return nil, xerrors.Newf("%w: %q", ErrUnsupportedStore, scheme)
}
