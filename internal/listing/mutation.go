package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/simp-lee/rentadmin/internal/backend"
	"github.com/simp-lee/rentadmin/internal/domain"
)

// MutationKind names a write operation.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

func (k MutationKind) pastTense() string {
	return string(k) + "d"
}

// PendingState reports which mutation kinds are in flight. Actions holds
// the record actions, such as block, by name.
type PendingState struct {
	Create  bool            `json:"create"`
	Update  bool            `json:"update"`
	Delete  bool            `json:"delete"`
	Actions map[string]bool `json:"actions,omitempty"`
}

// Coordinator performs create, update, delete and record-action calls for
// one resource view and keeps the shared cache consistent afterward.
//
// Every settled mutation makes one backend call and emits one notification.
// Success also invalidates the resource once and closes the editing session.
// Failure leaves cache and session untouched.
type Coordinator struct {
	res      domain.Resource
	backend  Backend
	cache    *Cache
	notifier Notifier
	session  *EditingSession
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[MutationKind]bool
}

// NewCoordinator creates a Coordinator. session, observer and logger may be
// nil.
func NewCoordinator(res domain.Resource, b Backend, cache *Cache, notifier Notifier, session *EditingSession, observer Observer, logger *slog.Logger) *Coordinator {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		res:      res,
		backend:  b,
		cache:    cache,
		notifier: notifier,
		session:  session,
		observer: observer,
		logger:   logger.With(slog.String("resource", res.Name)),
		pending:  make(map[MutationKind]bool),
	}
}

// IsPending reports whether a mutation of kind is in flight.
func (c *Coordinator) IsPending(kind MutationKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[kind]
}

// Pending returns the pending flag of every kind.
func (c *Coordinator) Pending() PendingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := PendingState{
		Create: c.pending[MutationCreate],
		Update: c.pending[MutationUpdate],
		Delete: c.pending[MutationDelete],
	}
	for kind, on := range c.pending {
		if _, ok := c.res.Action(string(kind)); ok && on {
			if ps.Actions == nil {
				ps.Actions = make(map[string]bool)
			}
			ps.Actions[string(kind)] = true
		}
	}
	return ps
}

// Create sends payload as a new record.
func (c *Coordinator) Create(ctx context.Context, payload domain.Fields) (domain.Record, error) {
	var rec domain.Record
	err := c.run(ctx, MutationCreate, MutationCreate.pastTense(), "", func() error {
		var err error
		rec, err = c.backend.Create(ctx, c.res, payload)
		return err
	})
	return rec, err
}

// Update sends a partial update for id. A record that no longer exists
// yields an error matching domain.IsNotFound.
func (c *Coordinator) Update(ctx context.Context, id string, payload domain.Fields) (domain.Record, error) {
	var rec domain.Record
	err := c.run(ctx, MutationUpdate, MutationUpdate.pastTense(), id, func() error {
		var err error
		rec, err = c.backend.Update(ctx, c.res, id, payload)
		return err
	})
	return rec, err
}

// Delete removes id.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	return c.run(ctx, MutationDelete, MutationDelete.pastTense(), id, func() error {
		return c.backend.Delete(ctx, c.res, id)
	})
}

// Perform runs the named record action, such as block, on id. Actions
// settle like the other mutations but leave the editing session alone.
func (c *Coordinator) Perform(ctx context.Context, name, id string) error {
	action, ok := c.res.Action(name)
	if !ok {
		return domain.NewAppError(domain.CodeNotFound, fmt.Sprintf("%s has no %q action", lower(c.res.Label), name), nil)
	}
	done := action.Done
	if done == "" {
		done = action.Name + " done"
	}
	return c.run(ctx, MutationKind(action.Name), done, id, func() error {
		return c.backend.Perform(ctx, c.res, action, id)
	})
}

func (c *Coordinator) run(ctx context.Context, kind MutationKind, done, id string, call func() error) error {
	if kind != MutationCreate && strings.TrimSpace(id) == "" {
		return domain.NewAppError(domain.CodeValidation, c.res.Label+" id is required", nil)
	}
	if !c.acquire(kind) {
		return domain.NewAppError(domain.CodeConflict, "a "+lower(c.res.Label)+" "+string(kind)+" is already in progress", nil)
	}
	defer c.release(kind)

	err := call()
	c.observer.MutationCompleted(c.res.Name, kind, err)

	if err != nil {
		c.logger.WarnContext(ctx, "mutation failed",
			slog.String("kind", string(kind)),
			slog.String("id", id),
			slog.Any("error", err),
		)
		c.notifier.Notify(Notification{
			Message: userMessage(err, "Failed to "+string(kind)+" "+lower(c.res.Label)),
			Type:    ToastError,
		})
		return err
	}

	evicted := c.cache.Invalidate(c.res.Name)
	c.logger.InfoContext(ctx, "mutation succeeded",
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.Int("evicted", evicted),
	)
	c.notifier.Notify(Notification{
		Message: c.res.Label + " " + done + " successfully",
		Type:    ToastSuccess,
	})
	if c.session != nil {
		switch kind {
		case MutationCreate, MutationUpdate:
			c.session.Clear()
		case MutationDelete:
			c.session.clearIfEditing(id)
		}
	}
	return nil
}

func (c *Coordinator) acquire(kind MutationKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[kind] {
		return false
	}
	c.pending[kind] = true
	return true
}

func (c *Coordinator) release(kind MutationKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, kind)
}

// userMessage returns the text shown for err: the backend's own message when
// it sent one, a generic transport message, or fallback.
func userMessage(err error, fallback string) string {
	switch {
	case backend.IsServerMessage(err):
		return domain.MessageOf(err)
	case domain.IsTransport(err):
		return "Could not complete request"
	}
	return fallback
}

func lower(s string) string {
	return strings.ToLower(s)
}
