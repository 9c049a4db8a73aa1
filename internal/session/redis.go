package session

import (
	"context"
	"errors"

	"github.com/mdobak/go-xerrors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the slot under "<prefix>:token". The prefix plays the role
// of the origin scope, so several clients can share one Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "beatpost"
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":" + SlotName,
	}
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Save(ctx context.Context, credential string) error {
	if err := s.client.Set(ctx, s.key, credential, 0).Err(); err != nil {
		return xerrors.Newf("save credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context) (string, bool, error) {
	credential, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Newf("read credential: %w", err)
	}
	return credential, credential != "", nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return xerrors.Newf("clear credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
