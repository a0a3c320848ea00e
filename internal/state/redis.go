package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// DefaultRedisPrefix namespaces preference keys.
const DefaultRedisPrefix = "rentadmin:pagination:"

// RedisStore keeps preferences in redis, one JSON value per session and
// resource. Every Load and Save restarts the ttl, so a preference expires
// after ttl of inactivity.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type redisValue struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Filter   string `json:"filter,omitempty"`
}

// NewRedisStore returns a store on client. An empty prefix uses
// DefaultRedisPrefix; a zero ttl never expires.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID, resource string) string {
	return s.prefix + sessionID + ":" + resource
}

func (s *RedisStore) Load(ctx context.Context, sessionID, resource string) (domain.PageRequest, bool, error) {
	key := s.key(sessionID, resource)
	var cmd *redis.StringCmd
	if s.ttl > 0 {
		cmd = s.client.GetEx(ctx, key, s.ttl)
	} else {
		cmd = s.client.Get(ctx, key)
	}
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PageRequest{}, false, nil
	}
	if err != nil {
		return domain.PageRequest{}, false, domain.NewAppError(domain.CodeInternal, "failed to load page preference", err)
	}
	var v redisValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.PageRequest{}, false, domain.NewAppError(domain.CodeInternal, "corrupt page preference", err)
	}
	return domain.PageRequest{Page: v.Page, PageSize: v.PageSize, Filter: v.Filter}, true, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID, resource string, req domain.PageRequest) error {
	if err := validate(sessionID, resource, req); err != nil {
		return err
	}
	raw, err := json.Marshal(redisValue{Page: req.Page, PageSize: req.PageSize, Filter: req.Filter})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sessionID, resource), raw, s.ttl).Err(); err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to save page preference", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
