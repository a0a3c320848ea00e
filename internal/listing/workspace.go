package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// DefaultMaxSessions bounds the Manager when unset.
const DefaultMaxSessions = 1024

// Workspace holds the views and the notification inbox of one dashboard
// session.
type Workspace struct {
	id      string
	inbox   *Inbox
	manager *Manager

	mu    sync.Mutex
	views map[string]*View
}

// ID returns the dashboard session id.
func (w *Workspace) ID() string { return w.id }

// Inbox returns the notification inbox of the session.
func (w *Workspace) Inbox() *Inbox { return w.inbox }

// View returns the view of the named resource, creating it on first use.
func (w *Workspace) View(ctx context.Context, name string) (*View, error) {
	q, ok := w.manager.queries[name]
	if !ok {
		return nil, domain.NewAppError(domain.CodeNotFound, fmt.Sprintf("unknown resource %q", name), nil)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.views[name]; ok {
		return v, nil
	}
	m := w.manager
	v := NewView(ctx, ViewConfig{
		SessionID:   w.id,
		Query:       q,
		Backend:     m.backend,
		Notifier:    w.inbox,
		Store:       m.store,
		Observer:    m.observer,
		Logger:      m.logger,
		PageSize:    m.pageSize,
		MaxPageSize: m.maxPageSize,
	})
	w.views[name] = v
	return v, nil
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Catalog  *domain.Catalog
	Backend  Backend
	Cache    *Cache
	Store    PreferenceStore
	Observer Observer
	Logger   *slog.Logger

	MaxSessions int
	PageSize    int
	MaxPageSize int
	InboxSize   int
}

// Manager owns the shared queries and one Workspace per dashboard session.
// The least recently used workspace is dropped once MaxSessions is reached;
// its persisted page preferences survive in the store.
type Manager struct {
	catalog  *domain.Catalog
	backend  Backend
	cache    *Cache
	queries  map[string]*Query
	store    PreferenceStore
	observer Observer
	logger   *slog.Logger

	pageSize    int
	maxPageSize int
	inboxSize   int

	mu       sync.Mutex
	sessions *lru.Cache
}

// NewManager creates a Manager with one shared Query per catalog resource.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("listing: catalog is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("listing: backend is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("listing: cache is required")
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	sessions, err := lru.New(maxSessions)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	queries := make(map[string]*Query)
	for _, res := range cfg.Catalog.All() {
		queries[res.Name] = NewQuery(res, cfg.Backend, cfg.Cache, observer, logger)
	}

	return &Manager{
		catalog:     cfg.Catalog,
		backend:     cfg.Backend,
		cache:       cfg.Cache,
		queries:     queries,
		store:       cfg.Store,
		observer:    observer,
		logger:      logger,
		pageSize:    cfg.PageSize,
		maxPageSize: cfg.MaxPageSize,
		inboxSize:   cfg.InboxSize,
		sessions:    sessions,
	}, nil
}

// Workspace returns the workspace of sessionID, creating it on first use.
func (m *Manager) Workspace(sessionID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.sessions.Get(sessionID); ok {
		return v.(*Workspace)
	}
	w := &Workspace{
		id:      sessionID,
		inbox:   NewInbox(m.inboxSize),
		manager: m,
		views:   make(map[string]*View),
	}
	m.sessions.Add(sessionID, w)
	return w
}

// Sessions returns the number of live workspaces.
func (m *Manager) Sessions() int {
	return m.sessions.Len()
}

// Catalog returns the resource catalog.
func (m *Manager) Catalog() *domain.Catalog { return m.catalog }

// Cache returns the shared snapshot cache.
func (m *Manager) Cache() *Cache { return m.cache }
