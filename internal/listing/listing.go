// Package listing implements the paginated-collection view model shared by
// every resource screen of the dashboard: pagination state, the cached
// collection query, the mutation coordinator and the editing session.
package listing

import (
	"context"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Backend is the marketplace REST collaborator.
type Backend interface {
	List(ctx context.Context, res domain.Resource, req domain.PageRequest) (domain.Page, error)
	Create(ctx context.Context, res domain.Resource, payload domain.Fields) (domain.Record, error)
	Update(ctx context.Context, res domain.Resource, id string, payload domain.Fields) (domain.Record, error)
	Delete(ctx context.Context, res domain.Resource, id string) error
	Get(ctx context.Context, res domain.Resource, id string) (domain.Record, error)
	Perform(ctx context.Context, res domain.Resource, action domain.Action, id string) error
}

// PreferenceStore persists the page and page size of a view per dashboard
// session.
type PreferenceStore interface {
	Load(ctx context.Context, sessionID, resource string) (domain.PageRequest, bool, error)
	Save(ctx context.Context, sessionID, resource string, req domain.PageRequest) error
}

// Observer receives listing events for metrics.
type Observer interface {
	CacheLookup(resource string, hit bool)
	FetchCompleted(resource string, status Status, discarded bool)
	MutationCompleted(resource string, kind MutationKind, err error)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(string, bool)                      {}
func (nopObserver) FetchCompleted(string, Status, bool)           {}
func (nopObserver) MutationCompleted(string, MutationKind, error) {}
