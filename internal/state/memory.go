package state

import (
	"context"
	"sync"
	"time"

	shardedcache "github.com/simp-lee/cache"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// DefaultMemoryEntries bounds a MemoryStore when MemoryOptions leaves it
// unset.
const DefaultMemoryEntries = 16384

const defaultMemoryShards = 16

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	// MaxEntries bounds the number of (session, resource) preferences held.
	// Once a shard is full its oldest entry is evicted.
	MaxEntries int
	// TTL expires a preference that has not been saved again for that long.
	// Zero keeps preferences until they are evicted.
	TTL time.Duration
}

// MemoryStore keeps preferences in a bounded, sharded in-process cache.
// They are lost on restart.
type MemoryStore struct {
	cache     shardedcache.CacheInterface
	closeOnce sync.Once
}

// NewMemoryStore creates an empty MemoryStore holding at most
// opts.MaxEntries preferences.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	// Each shard is bounded on its own; keep shards*perShard <= maxEntries.
	shards := defaultMemoryShards
	for shards > 1 && shards > maxEntries {
		shards /= 2
	}

	var cleanup time.Duration
	if opts.TTL > 0 {
		cleanup = max(opts.TTL/2, time.Second)
	}
	return &MemoryStore{cache: shardedcache.NewCache(shardedcache.Options{
		MaxSize:           maxEntries / shards,
		DefaultExpiration: opts.TTL,
		CleanupInterval:   cleanup,
		ShardCount:        shards,
	})}
}

func memoryKey(sessionID, resource string) string {
	return sessionID + "\x00" + resource
}

func (s *MemoryStore) Load(_ context.Context, sessionID, resource string) (domain.PageRequest, bool, error) {
	req, ok := shardedcache.GetTyped[domain.PageRequest](s.cache, memoryKey(sessionID, resource))
	return req, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID, resource string, req domain.PageRequest) error {
	if err := validate(sessionID, resource, req); err != nil {
		return err
	}
	s.cache.Set(memoryKey(sessionID, resource), req)
	return nil
}

// Len returns the number of preferences held, expired ones included until
// the next cleanup.
func (s *MemoryStore) Len() int { return s.cache.Count() }

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutines.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(s.cache.Close)
	return nil
}
