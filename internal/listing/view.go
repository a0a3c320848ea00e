package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// ViewModel is everything the rendering layer needs to draw one resource
// screen.
type ViewModel struct {
	Resource   string          `json:"resource"`
	Label      string          `json:"label"`
	Filters    []FilterTab     `json:"filters,omitempty"`
	Actions    []string        `json:"actions,omitempty"`
	Items      []domain.Record `json:"items"`
	TotalCount int             `json:"totalCount"`
	Status     Status          `json:"status"`
	IsLoading  bool            `json:"isLoading"`
	Error      string          `json:"error,omitempty"`
	Pagination PageInfo        `json:"pagination"`
	Editor     EditorState     `json:"editor"`
	Pending    PendingState    `json:"pending"`
}

// FilterTab is one selectable subset of a list.
type FilterTab struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// View binds pagination, the shared query, a coordinator and an editing
// session for one resource of one dashboard session.
//
// After a delete or record action empties the current page and the page is
// past the first, the view steps back one page and loads it.
type View struct {
	sessionID   string
	res         domain.Resource
	query       *Query
	backend     Backend
	coordinator *Coordinator
	session     *EditingSession
	notifier    Notifier
	store       PreferenceStore
	logger      *slog.Logger

	mu         sync.Mutex
	pagination *Pagination
	last       Result
}

// ViewConfig holds the collaborators of a View.
type ViewConfig struct {
	SessionID   string
	Query       *Query
	Backend     Backend
	Notifier    Notifier
	Store       PreferenceStore
	Observer    Observer
	Logger      *slog.Logger
	PageSize    int
	MaxPageSize int
}

// NewView creates a View on the default filter of the resource. The
// persisted page, page size and filter of the session are restored when
// cfg.Store holds them.
func NewView(ctx context.Context, cfg ViewConfig) *View {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := cfg.Query.Resource()
	session := NewEditingSession(res)
	v := &View{
		sessionID:   cfg.SessionID,
		res:         res,
		query:       cfg.Query,
		backend:     cfg.Backend,
		coordinator: NewCoordinator(res, cfg.Backend, cfg.Query.cache, cfg.Notifier, session, cfg.Observer, logger),
		session:     session,
		notifier:    cfg.Notifier,
		store:       cfg.Store,
		logger:      logger.With(slog.String("resource", res.Name)),
		pagination:  NewPagination(cfg.PageSize, cfg.MaxPageSize),
	}
	v.pagination.SetFilter(res.DefaultFilter())

	if v.store != nil {
		req, ok, err := v.store.Load(ctx, v.sessionID, res.Name)
		switch {
		case err != nil:
			v.logger.WarnContext(ctx, "failed to load page preferences", slog.Any("error", err))
		case ok:
			if !res.HasFilter(req.Filter) {
				req.Filter = res.DefaultFilter()
			}
			v.pagination.Restore(req)
		}
	}
	return v
}

// Resource returns the resource of the view.
func (v *View) Resource() domain.Resource { return v.res }

// Session returns the editing session of the view.
func (v *View) Session() *EditingSession { return v.session }

// Coordinator returns the mutation coordinator of the view.
func (v *View) Coordinator() *Coordinator { return v.coordinator }

// Load returns the active page, fetching it when it is not cached, and
// feeds the reported total back into the pagination.
func (v *View) Load(ctx context.Context) Result {
	req := v.request()
	return v.apply(ctx, v.query.Filtered(req.Filter).Load(ctx, req.Page, req.PageSize))
}

// Refresh refetches the active page regardless of the cache.
func (v *View) Refresh(ctx context.Context) Result {
	req := v.request()
	return v.apply(ctx, v.query.Filtered(req.Filter).Refetch(ctx, req.Page, req.PageSize))
}

// SetPage moves to page n.
func (v *View) SetPage(ctx context.Context, n int) error {
	v.mu.Lock()
	err := v.pagination.SetPage(n)
	req := v.pagination.Request()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.persist(ctx, req)
	return nil
}

// SetPageSize changes the page size and returns to page 1.
func (v *View) SetPageSize(ctx context.Context, n int) error {
	v.mu.Lock()
	err := v.pagination.SetPageSize(n)
	req := v.pagination.Request()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.persist(ctx, req)
	return nil
}

// SetFilter switches the list to the named filter and returns to page 1.
func (v *View) SetFilter(ctx context.Context, name string) error {
	if !v.res.HasFilter(name) {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown %s filter %q", lower(v.res.Label), name), nil)
	}
	v.mu.Lock()
	v.pagination.SetFilter(name)
	v.last = Result{}
	req := v.pagination.Request()
	v.mu.Unlock()
	v.persist(ctx, req)
	return nil
}

// Reset returns to page 1 and forgets the total.
func (v *View) Reset(ctx context.Context) {
	v.mu.Lock()
	v.pagination.Reset()
	v.last = Result{}
	req := v.pagination.Request()
	v.mu.Unlock()
	v.persist(ctx, req)
}

// Pagination returns a snapshot of the pagination state.
func (v *View) Pagination() PageInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pagination.Info()
}

// StartCreate opens the editor in create mode.
func (v *View) StartCreate() error {
	return v.session.StartCreate()
}

// StartEdit opens the editor for id, which must be on the last loaded page.
func (v *View) StartEdit(id string) error {
	v.mu.Lock()
	last := v.last
	current := v.pagination.Request()
	v.mu.Unlock()

	if last.Status == StatusSuccess && last.Key.matches(current) {
		for _, rec := range last.Items {
			if rec.ID() == id {
				return v.session.StartEdit(rec)
			}
		}
	}
	return domain.NewAppError(domain.CodeNotFound, v.res.Label+" not found on the current page", nil)
}

// UpdateDraft merges fields into the editor draft.
func (v *View) UpdateDraft(fields domain.Fields) error {
	return v.session.UpdateDraft(fields)
}

// CancelEdit closes the editor.
func (v *View) CancelEdit() {
	v.session.Clear()
}

// Submit validates the draft and creates or updates the record. A missing
// required field is reported as a notification without calling the backend.
func (v *View) Submit(ctx context.Context) (domain.Record, error) {
	state := v.session.Snapshot()
	if state.Mode != ModeClosed && !state.Submitting {
		if missing := v.res.MissingRequired(state.Draft); len(missing) > 0 {
			msg := v.res.FieldLabel(missing[0]) + " is required"
			v.notifier.Notify(Notification{Message: msg, Type: ToastError})
			return nil, domain.NewAppError(domain.CodeValidation, msg, nil)
		}
	}

	sub, err := v.session.BeginSubmit()
	if err != nil {
		return nil, err
	}

	var rec domain.Record
	if sub.Mode == ModeEdit {
		rec, err = v.coordinator.Update(ctx, sub.TargetID, sub.Draft)
	} else {
		rec, err = v.coordinator.Create(ctx, sub.Draft)
	}
	if err != nil {
		v.session.EndSubmit(false)
		return nil, err
	}
	return rec, nil
}

// Delete removes id and reloads the active page, stepping back one page
// when the current one came back empty.
func (v *View) Delete(ctx context.Context, id string) error {
	if err := v.coordinator.Delete(ctx, id); err != nil {
		return err
	}
	v.reload(ctx)
	return nil
}

// Perform runs the named record action on id and reloads the active page.
// Actions such as block move the record out of the current filter, so the
// page may come back empty and step back like a delete.
func (v *View) Perform(ctx context.Context, action, id string) error {
	if err := v.coordinator.Perform(ctx, action, id); err != nil {
		return err
	}
	v.reload(ctx)
	return nil
}

// Get fetches the record id from the backend, bypassing the list cache.
func (v *View) Get(ctx context.Context, id string) (domain.Record, error) {
	if !v.res.Detail {
		return nil, domain.NewAppError(domain.CodeNotFound, v.res.Label+" details are not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewAppError(domain.CodeValidation, v.res.Label+" id is required", nil)
	}
	rec, err := v.backend.Get(ctx, v.res, id)
	if err != nil {
		v.logger.WarnContext(ctx, "failed to fetch record", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	return rec, nil
}

func (v *View) reload(ctx context.Context) {
	r := v.Load(ctx)
	if r.Status != StatusSuccess || len(r.Items) > 0 {
		return
	}

	v.mu.Lock()
	current := v.pagination.Request()
	if current.Page <= 1 || !r.Key.matches(current) {
		v.mu.Unlock()
		return
	}
	_ = v.pagination.SetPage(current.Page - 1)
	req := v.pagination.Request()
	v.mu.Unlock()

	v.logger.DebugContext(ctx, "page empty after mutation, stepping back", slog.Int("page", req.Page))
	v.persist(ctx, req)
	v.Load(ctx)
}

// Model returns the view model of the active page without fetching.
func (v *View) Model() ViewModel {
	v.mu.Lock()
	req := v.pagination.Request()
	info := v.pagination.Info()
	last := v.last
	v.mu.Unlock()

	r := last
	if r.Key.Resource == "" || !r.Key.matches(req) {
		r = v.query.Filtered(req.Filter).State(req.Page, req.PageSize)
	}

	m := ViewModel{
		Resource:   v.res.Name,
		Label:      v.res.Label,
		Filters:    v.filterTabs(req.Filter),
		Items:      r.Items,
		TotalCount: r.TotalCount,
		Status:     r.Status,
		IsLoading:  r.Status == StatusLoading,
		Pagination: info,
		Editor:     v.session.Snapshot(),
		Pending:    v.coordinator.Pending(),
	}
	for _, a := range v.res.Actions {
		m.Actions = append(m.Actions, a.Name)
	}
	if m.Items == nil {
		m.Items = []domain.Record{}
	}
	if r.Status == StatusError {
		m.Error = userMessage(r.Err, "Failed to load "+lower(v.res.Label)+" list")
	}
	return m
}

func (v *View) filterTabs(active string) []FilterTab {
	var tabs []FilterTab
	for _, f := range v.res.Filters {
		tabs = append(tabs, FilterTab{Name: f.Name, Label: f.Label, Active: f.Name == active})
	}
	return tabs
}

func (v *View) request() domain.PageRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pagination.Request()
}

// apply records r when it still belongs to the active key.
func (v *View) apply(ctx context.Context, r Result) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !r.Key.matches(v.pagination.Request()) {
		return r
	}
	v.last = r
	if r.Status == StatusSuccess {
		if err := v.pagination.SetTotalItems(r.TotalCount); err != nil {
			v.logger.WarnContext(ctx, "ignoring invalid total", slog.Any("error", err))
		}
	}
	return r
}

func (v *View) persist(ctx context.Context, req domain.PageRequest) {
	if v.store == nil {
		return
	}
	if err := v.store.Save(ctx, v.sessionID, v.res.Name, req); err != nil {
		v.logger.WarnContext(ctx, "failed to save page preferences", slog.Any("error", err))
	}
}
