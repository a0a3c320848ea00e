package listing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// DefaultCacheSize bounds the shared snapshot cache when unset.
const DefaultCacheSize = 512

// orphanRetries is how many times a load orphaned by an invalidation is
// reissued.
const orphanRetries = 1

// Status is the lifecycle state of one collection key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Key identifies one cached page of a resource.
type Key struct {
	Resource string
	Filter   string
	Page     int
	PageSize int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.Resource, k.Filter, k.Page, k.PageSize)
}

// matches reports whether k addresses the page req asks for.
func (k Key) matches(req domain.PageRequest) bool {
	return k.Page == req.Page && k.PageSize == req.PageSize && k.Filter == req.Filter
}

// Result is the state of one key: a snapshot on success, the error on
// failure. An error Result never carries items.
type Result struct {
	Key        Key
	Status     Status
	Items      []domain.Record
	TotalCount int
	Err        error
	FetchedAt  time.Time
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	MaxSize int
	// TTL expires successful snapshots; zero keeps them until invalidated
	// or evicted.
	TTL time.Duration
}

// Cache holds the collection snapshots of every resource, keyed by
// (resource, filter, page, pageSize). It is shared by all sessions.
type Cache struct {
	entries *lru.Cache
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time

	mu  sync.Mutex
	seq uint64
	// latest holds the newest issued generation of every key with a
	// request in flight.
	latest map[Key]uint64
}

// NewCache creates a Cache.
func NewCache(opts CacheOptions) (*Cache, error) {
	size := opts.MaxSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &Cache{
		entries: entries,
		ttl:     opts.TTL,
		now:     time.Now,
		latest:  make(map[Key]uint64),
	}, nil
}

// Invalidate evicts every snapshot of resource, under every filter, and
// orphans its in-flight requests, whose responses will be discarded. It
// returns the number of evicted snapshots.
func (c *Cache) Invalidate(resource string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, k := range c.entries.Keys() {
		key, ok := k.(Key)
		if ok && key.Resource == resource {
			c.entries.Remove(key)
			n++
		}
	}
	for key := range c.latest {
		if key.Resource == resource {
			delete(c.latest, key)
			c.group.Forget(key.String())
		}
	}
	return n
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// begin issues a new generation for key.
func (c *Cache) begin(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.latest[key] = c.seq
	return c.seq
}

// complete stores r if gen is still the newest generation of its key.
func (c *Cache) complete(gen uint64, r Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.latest[r.Key]; !ok || cur != gen {
		return false
	}
	delete(c.latest, r.Key)
	c.entries.Add(r.Key, r)
	return true
}

// fresh returns the successful, unexpired snapshot of key.
func (c *Cache) fresh(key Key) (Result, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return Result{}, false
	}
	r := v.(Result)
	if r.Status != StatusSuccess {
		return Result{}, false
	}
	if c.ttl > 0 && c.now().Sub(r.FetchedAt) >= c.ttl {
		return Result{}, false
	}
	return r, true
}

func (c *Cache) state(key Key) Result {
	c.mu.Lock()
	_, inflight := c.latest[key]
	c.mu.Unlock()

	r := Result{Key: key, Status: StatusIdle}
	if v, ok := c.entries.Peek(key); ok {
		r = v.(Result)
	}
	if inflight {
		r.Status = StatusLoading
		r.Err = nil
	}
	return r
}

// Query loads pages of one resource list through the shared Cache.
type Query struct {
	res      domain.Resource
	filter   string
	backend  Backend
	cache    *Cache
	observer Observer
	logger   *slog.Logger
}

// NewQuery creates a Query for res. observer and logger may be nil.
func NewQuery(res domain.Resource, backend Backend, cache *Cache, observer Observer, logger *slog.Logger) *Query {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Query{
		res:      res,
		backend:  backend,
		cache:    cache,
		observer: observer,
		logger:   logger.With(slog.String("resource", res.Name)),
	}
}

// Resource returns the resource this query loads.
func (q *Query) Resource() domain.Resource {
	return q.res
}

// Filtered returns a Query over the named filter of the same resource,
// sharing the cache and collaborators of q.
func (q *Query) Filtered(filter string) *Query {
	if filter == q.filter {
		return q
	}
	fq := *q
	fq.filter = filter
	return &fq
}

// Load returns the snapshot of (page, pageSize), fetching it when the cache
// holds none. Concurrent loads of the same key share one request.
func (q *Query) Load(ctx context.Context, page, pageSize int) Result {
	key := q.key(page, pageSize)
	if r, ok := q.cache.fresh(key); ok {
		q.observer.CacheLookup(q.res.Name, true)
		return r
	}
	q.observer.CacheLookup(q.res.Name, false)
	return q.fetch(ctx, key, false)
}

// Refetch issues a new request for (page, pageSize) regardless of the cache.
// A request already in flight for the key is superseded.
func (q *Query) Refetch(ctx context.Context, page, pageSize int) Result {
	return q.fetch(ctx, q.key(page, pageSize), true)
}

// State returns the current state of (page, pageSize) without fetching.
func (q *Query) State(page, pageSize int) Result {
	return q.cache.state(q.key(page, pageSize))
}

// Invalidate evicts every snapshot of this query's resource.
func (q *Query) Invalidate() int {
	return q.cache.Invalidate(q.res.Name)
}

func (q *Query) key(page, pageSize int) Key {
	return Key{Resource: q.res.Name, Filter: q.filter, Page: page, PageSize: pageSize}
}

func (q *Query) fetch(ctx context.Context, key Key, force bool) Result {
	name := key.String()
	if force {
		q.cache.group.Forget(name)
	}
	v, _, _ := q.cache.group.Do(name, func() (any, error) {
		if !force {
			if r, ok := q.cache.fresh(key); ok {
				return r, nil
			}
		}
		return q.run(ctx, key), nil
	})
	return v.(Result)
}

// run fetches key. A response orphaned by an invalidation, with no newer
// request in flight, is refetched so the caller never sees an idle key.
func (q *Query) run(ctx context.Context, key Key) Result {
	for attempt := 0; ; attempt++ {
		r, applied := q.request(ctx, key)
		if applied {
			return r
		}
		state := q.cache.state(key)
		if state.Status != StatusIdle || attempt >= orphanRetries {
			return state
		}
		q.logger.DebugContext(ctx, "list request orphaned by invalidation, refetching",
			slog.String("filter", key.Filter),
			slog.Int("page", key.Page),
			slog.Int("page_size", key.PageSize),
		)
	}
}

// request issues one generation of key and reports whether its result was
// applied to the cache.
func (q *Query) request(ctx context.Context, key Key) (Result, bool) {
	gen := q.cache.begin(key)

	// No cancellation: superseded responses are discarded by generation.
	page, err := q.backend.List(context.WithoutCancel(ctx), q.res, domain.PageRequest{
		Page:     key.Page,
		PageSize: key.PageSize,
		Filter:   key.Filter,
	})

	r := Result{Key: key, FetchedAt: q.cache.now()}
	if err != nil {
		r.Status = StatusError
		r.Err = err
		q.logger.WarnContext(ctx, "list fetch failed",
			slog.String("filter", key.Filter),
			slog.Int("page", key.Page),
			slog.Int("page_size", key.PageSize),
			slog.Any("error", err),
		)
	} else {
		items := page.Items
		if len(items) > key.PageSize {
			q.logger.WarnContext(ctx, "backend returned more items than requested, truncating",
				slog.Int("page_size", key.PageSize),
				slog.Int("items", len(items)),
			)
			items = items[:key.PageSize:key.PageSize]
		}
		if items == nil {
			items = []domain.Record{}
		}
		r.Status = StatusSuccess
		r.Items = items
		r.TotalCount = page.TotalCount
	}

	if !q.cache.complete(gen, r) {
		q.logger.DebugContext(ctx, "discarding superseded list response",
			slog.Int("page", key.Page),
			slog.Int("page_size", key.PageSize),
			slog.Uint64("generation", gen),
		)
		q.observer.FetchCompleted(q.res.Name, r.Status, true)
		return Result{}, false
	}
	q.observer.FetchCompleted(q.res.Name, r.Status, false)
	return r, true
}
