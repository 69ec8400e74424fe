package notifications

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tmis-business-guru/internal/common/database"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/models"
)

// setIfLater writes ARGV[1] unless the stored value is already greater or equal.
var setIfLater = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// RedisStore shares watermarks between service instances. Values are unix microseconds.
type RedisStore struct {
	client *database.RedisClient
	prefix string
}

func NewRedisStore(client *database.RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(role, userID string, kind models.WatermarkKind) string {
	return s.prefix + kind.StorageKey(role, userID)
}

func (s *RedisStore) Get(ctx context.Context, role, userID string, kind models.WatermarkKind) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(role, userID, kind))
	if stderrors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.NewWatermarkStoreError("get", err)
	}
	micros, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.NewWatermarkStoreError("get", err)
	}
	return time.UnixMicro(micros), true, nil
}

func (s *RedisStore) Set(ctx context.Context, role, userID string, kind models.WatermarkKind, at time.Time) error {
	_, err := s.client.RunScript(ctx, setIfLater, []string{s.key(role, userID, kind)}, at.UnixMicro())
	if err != nil {
		return errors.NewWatermarkStoreError("set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, role, userID string, kind models.WatermarkKind) error {
	if err := s.client.Del(ctx, s.key(role, userID, kind)); err != nil {
		return errors.NewWatermarkStoreError("delete", err)
	}
	return nil
}
