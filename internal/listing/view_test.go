package listing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/simp-lee/rentadmin/internal/backend"
	"github.com/simp-lee/rentadmin/internal/domain"
)

func newTestView(t *testing.T, b Backend, pageSize int, store PreferenceStore) (*View, *Inbox) {
	t.Helper()
	inbox := NewInbox(0)
	q := NewQuery(brandRes, b, mustCache(CacheOptions{}), nil, nil)
	v := NewView(context.Background(), ViewConfig{
		SessionID: "s1",
		Query:     q,
		Backend:   b,
		Notifier:  inbox,
		Store:     store,
		PageSize:  pageSize,
	})
	return v, inbox
}

func TestView_LoadFeedsTotal(t *testing.T) {
	v, _ := newTestView(t, newMemBackend(45), 20, nil)
	_ = v.SetPage(context.Background(), 3)

	r := v.Load(context.Background())
	if r.Status != StatusSuccess || len(r.Items) != 5 {
		t.Fatalf("result = %+v", r)
	}
	info := v.Pagination()
	if info.TotalItems != 45 || info.TotalPages != 3 || info.DisplayStart != 41 || info.DisplayEnd != 45 {
		t.Errorf("pagination = %+v", info)
	}
}

// End-to-end create against an HTTP backend.
func TestView_CreateScenario(t *testing.T) {
	res := domain.Resource{Name: "brands", Label: "Brand", Path: "/car-brands", ListKey: "carBrends", Required: []string{"title"}}

	var (
		mu       sync.Mutex
		lists    int
		postBody map[string]any
		postPath string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			lists++
			_, _ = io.WriteString(w, `{"success":true,"responseObject":{"carBrends":[],"totalCount":0}}`)
		case http.MethodPost:
			postPath = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &postBody)
			_, _ = io.WriteString(w, `{"success":true,"responseObject":{"id":"abc","carBrend":"Chevrolet"}}`)
		}
	}))
	defer srv.Close()

	client, err := backend.New(backend.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("backend.New() error: %v", err)
	}
	cache := mustCache(CacheOptions{})
	inbox := NewInbox(0)
	v := NewView(context.Background(), ViewConfig{
		SessionID: "s1",
		Query:     NewQuery(res, client, cache, nil, nil),
		Backend:   client,
		Notifier:  inbox,
	})
	ctx := context.Background()
	v.Load(ctx)

	if err := v.StartCreate(); err != nil {
		t.Fatalf("StartCreate() error: %v", err)
	}
	if state := v.Session().Snapshot(); state.Mode != ModeCreate || len(state.Draft) != 0 {
		t.Fatalf("editor = %+v; want empty create draft", state)
	}
	if err := v.UpdateDraft(domain.Fields{"title": "Chevrolet"}); err != nil {
		t.Fatalf("UpdateDraft() error: %v", err)
	}

	rec, err := v.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if rec.ID() != "abc" {
		t.Errorf("ID() = %q; want abc", rec.ID())
	}

	mu.Lock()
	if postPath != "/car-brands" {
		t.Errorf("POST path = %q", postPath)
	}
	if len(postBody) != 1 || postBody["title"] != "Chevrolet" {
		t.Errorf("POST body = %v; want {title: Chevrolet}", postBody)
	}
	mu.Unlock()

	if cache.Len() != 0 {
		t.Error("cache should be invalidated")
	}
	notes := inbox.Drain()
	if len(notes) != 1 || notes[0].Message != "Brand created successfully" {
		t.Errorf("notifications = %+v", notes)
	}
	if v.Session().Snapshot().Mode != ModeClosed {
		t.Error("editor should be cleared")
	}

	v.Load(ctx)
	mu.Lock()
	defer mu.Unlock()
	if lists != 2 {
		t.Errorf("list calls = %d; want a refetch after create", lists)
	}
}

func TestView_SubmitValidatesRequiredFields(t *testing.T) {
	b := newMemBackend(0)
	v, inbox := newTestView(t, b, 10, nil)
	_ = v.StartCreate()
	_ = v.UpdateDraft(domain.Fields{"carBrend": "   "})

	_, err := v.Submit(context.Background())
	if !domain.IsValidation(err) {
		t.Fatalf("Submit() error = %v; want validation", err)
	}
	notes := inbox.Drain()
	if len(notes) != 1 || notes[0].Message != "Brand name is required" || notes[0].Type != ToastError {
		t.Errorf("notifications = %+v", notes)
	}
	if b.count("create") != 0 {
		t.Error("validation failure must not call the backend")
	}
	if state := v.Session().Snapshot(); state.Mode != ModeCreate || state.Submitting {
		t.Errorf("editor = %+v; want open create", state)
	}
}

func TestView_EditAndUpdate(t *testing.T) {
	b := newMemBackend(3)
	v, inbox := newTestView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)

	if err := v.StartEdit("r2"); err != nil {
		t.Fatalf("StartEdit() error: %v", err)
	}
	_ = v.UpdateDraft(domain.Fields{"carBrend": "Renamed"})
	if _, err := v.Submit(ctx); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if notes := inbox.Drain(); len(notes) != 1 || notes[0].Message != "Brand updated successfully" {
		t.Errorf("notifications = %+v", notes)
	}

	r := v.Load(ctx)
	if r.Items[1]["carBrend"] != "Renamed" {
		t.Errorf("item = %v; want refreshed data", r.Items[1])
	}
}

func TestView_StaleEditKeepsDraft(t *testing.T) {
	b := newMemBackend(3)
	v, inbox := newTestView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)
	_ = v.StartEdit("r3")

	// Another tab removes the record.
	_ = b.Delete(ctx, brandRes, "r3")

	_ = v.UpdateDraft(domain.Fields{"carBrend": "Late"})
	if _, err := v.Submit(ctx); !domain.IsNotFound(err) {
		t.Fatalf("Submit() error = %v; want not found", err)
	}
	if notes := inbox.Drain(); len(notes) != 1 || notes[0].Message != "Brand not found" {
		t.Errorf("notifications = %+v", notes)
	}
	state := v.Session().Snapshot()
	if state.Mode != ModeEdit || state.Draft["carBrend"] != "Late" {
		t.Errorf("editor = %+v; want edit mode with draft", state)
	}
}

func TestView_StartEditRequiresLoadedRecord(t *testing.T) {
	v, _ := newTestView(t, newMemBackend(3), 10, nil)
	if err := v.StartEdit("r1"); !domain.IsNotFound(err) {
		t.Errorf("StartEdit() before load error = %v; want not found", err)
	}
	v.Load(context.Background())
	if err := v.StartEdit("missing"); !domain.IsNotFound(err) {
		t.Errorf("StartEdit(missing) error = %v; want not found", err)
	}
}

func TestView_DeleteStepsBackFromEmptyPage(t *testing.T) {
	b := newMemBackend(21)
	v, inbox := newTestView(t, b, 10, nil)
	ctx := context.Background()
	_ = v.SetPage(ctx, 3)
	r := v.Load(ctx)
	if len(r.Items) != 1 {
		t.Fatalf("page 3 items = %d; want 1", len(r.Items))
	}

	if err := v.Delete(ctx, r.Items[0].ID()); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	info := v.Pagination()
	if info.CurrentPage != 2 || info.TotalItems != 20 || info.TotalPages != 2 {
		t.Errorf("pagination = %+v; want page 2 of 2", info)
	}
	m := v.Model()
	if m.Status != StatusSuccess || len(m.Items) != 10 {
		t.Errorf("model = %+v; want page 2 loaded", m)
	}
	if notes := inbox.Drain(); len(notes) != 1 || notes[0].Message != "Brand deleted successfully" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestView_DeleteOnFirstPageStaysPut(t *testing.T) {
	b := newMemBackend(1)
	v, _ := newTestView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)

	if err := v.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	m := v.Model()
	if m.Pagination.CurrentPage != 1 || m.Status != StatusSuccess || len(m.Items) != 0 {
		t.Errorf("model = %+v; want empty first page", m)
	}
}

func TestView_FailedDeleteLeavesList(t *testing.T) {
	b := newMemBackend(3)
	v, inbox := newTestView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)

	if err := v.Delete(ctx, "xyz"); err == nil {
		t.Fatal("Delete() should fail")
	}
	if notes := inbox.Drain(); len(notes) != 1 || notes[0].Message != "Brand not found" {
		t.Errorf("notifications = %+v", notes)
	}
	if m := v.Model(); len(m.Items) != 3 {
		t.Errorf("items = %d; want 3", len(m.Items))
	}
	if b.count("list") != 1 {
		t.Error("failed delete must not trigger a refetch")
	}
}

func TestView_ErrorModel(t *testing.T) {
	b := newMemBackend(3)
	b.listErr = domain.NewAppError(domain.CodeTransport, "could not complete request", nil)
	v, _ := newTestView(t, b, 10, nil)

	v.Load(context.Background())
	m := v.Model()
	if m.Status != StatusError || m.Error != "Could not complete request" || len(m.Items) != 0 {
		t.Errorf("model = %+v", m)
	}
}

func TestView_PageSizeResetsAndPersists(t *testing.T) {
	store := newMemStore()
	v, _ := newTestView(t, newMemBackend(100), 10, store)
	ctx := context.Background()

	_ = v.SetPage(ctx, 4)
	if err := v.SetPageSize(ctx, 25); err != nil {
		t.Fatalf("SetPageSize() error: %v", err)
	}
	if info := v.Pagination(); info.CurrentPage != 1 || info.PageSize != 25 {
		t.Errorf("pagination = %+v", info)
	}

	_ = v.SetPage(ctx, 2)
	restored, _ := newTestView(t, newMemBackend(100), 10, store)
	if info := restored.Pagination(); info.CurrentPage != 2 || info.PageSize != 25 {
		t.Errorf("restored pagination = %+v; want page 2 size 25", info)
	}
}

func TestView_Reset(t *testing.T) {
	v, _ := newTestView(t, newMemBackend(30), 10, nil)
	ctx := context.Background()
	_ = v.SetPage(ctx, 3)
	v.Load(ctx)
	v.Reset(ctx)
	info := v.Pagination()
	if info.CurrentPage != 1 || info.TotalItems != 0 {
		t.Errorf("pagination = %+v", info)
	}
}

func TestView_Refresh(t *testing.T) {
	b := newMemBackend(3)
	v, _ := newTestView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)
	v.Load(ctx)
	v.Refresh(ctx)
	if got := b.count("list"); got != 2 {
		t.Errorf("list calls = %d; want 2", got)
	}
}

func newClientView(t *testing.T, b Backend, pageSize int, store PreferenceStore) (*View, *Inbox) {
	t.Helper()
	inbox := NewInbox(0)
	v := NewView(context.Background(), ViewConfig{
		SessionID: "s1",
		Query:     NewQuery(clientRes, b, mustCache(CacheOptions{}), nil, nil),
		Backend:   b,
		Notifier:  inbox,
		Store:     store,
		PageSize:  pageSize,
	})
	return v, inbox
}

func TestView_FilterTabs(t *testing.T) {
	v, _ := newClientView(t, newClientBackend(3, 2), 10, nil)
	ctx := context.Background()

	r := v.Load(ctx)
	if r.Status != StatusSuccess || len(r.Items) != 3 || r.TotalCount != 3 {
		t.Fatalf("active result = %+v", r)
	}
	m := v.Model()
	if m.Pagination.Filter != "active" || len(m.Filters) != 2 || !m.Filters[0].Active || m.Filters[1].Active {
		t.Errorf("model filters = %+v, pagination = %+v", m.Filters, m.Pagination)
	}
	if len(m.Actions) != 2 || m.Actions[0] != "block" {
		t.Errorf("model actions = %v", m.Actions)
	}

	if err := v.SetFilter(ctx, "blocked"); err != nil {
		t.Fatalf("SetFilter() error: %v", err)
	}
	if m := v.Model(); m.Status != StatusIdle || len(m.Items) != 0 {
		t.Errorf("model before load = %+v; want idle blocked list", m)
	}
	r = v.Load(ctx)
	if len(r.Items) != 2 || r.Key.Filter != "blocked" {
		t.Errorf("blocked result = %+v", r)
	}
	if err := v.StartEdit("c1"); !domain.IsNotFound(err) {
		t.Errorf("StartEdit(active client) on blocked tab error = %v; want not found", err)
	}
	if err := v.SetFilter(ctx, "archived"); !domain.IsValidation(err) {
		t.Errorf("SetFilter(archived) error = %v; want validation", err)
	}
}

func TestView_FilterResetsPage(t *testing.T) {
	v, _ := newClientView(t, newClientBackend(30, 5), 10, nil)
	ctx := context.Background()
	_ = v.SetPage(ctx, 3)
	v.Load(ctx)

	_ = v.SetFilter(ctx, "blocked")
	if info := v.Pagination(); info.CurrentPage != 1 || info.TotalItems != 0 || info.Filter != "blocked" {
		t.Errorf("pagination = %+v", info)
	}
}

func TestView_FilterPersists(t *testing.T) {
	store := newMemStore()
	v, _ := newClientView(t, newClientBackend(3, 2), 10, store)
	_ = v.SetFilter(context.Background(), "blocked")

	restored, _ := newClientView(t, newClientBackend(3, 2), 10, store)
	if got := restored.Pagination().Filter; got != "blocked" {
		t.Errorf("restored filter = %q; want blocked", got)
	}

	_ = store.Save(context.Background(), "s1", "clients", domain.PageRequest{Page: 2, PageSize: 10, Filter: "archived"})
	restored, _ = newClientView(t, newClientBackend(3, 2), 10, store)
	if info := restored.Pagination(); info.Filter != "active" || info.CurrentPage != 2 {
		t.Errorf("pagination = %+v; want unknown filter replaced by active", info)
	}
}

func TestView_PerformReloadsFilteredList(t *testing.T) {
	b := newClientBackend(3, 0)
	v, inbox := newClientView(t, b, 10, nil)
	ctx := context.Background()
	v.Load(ctx)

	if err := v.Perform(ctx, "block", "c2"); err != nil {
		t.Fatalf("Perform() error: %v", err)
	}
	m := v.Model()
	if m.Status != StatusSuccess || len(m.Items) != 2 || m.TotalCount != 2 {
		t.Errorf("model = %+v; want c2 gone from active", m)
	}
	if notes := inbox.Drain(); len(notes) != 1 || notes[0].Message != "Client blocked successfully" {
		t.Errorf("notifications = %+v", notes)
	}
	if got := b.count("list"); got != 2 {
		t.Errorf("list calls = %d; want 2", got)
	}

	_ = v.SetFilter(ctx, "blocked")
	if r := v.Load(ctx); len(r.Items) != 1 || r.Items[0].ID() != "c2" {
		t.Errorf("blocked list = %+v", r.Items)
	}
}

func TestView_PerformStepsBackFromEmptyPage(t *testing.T) {
	v, _ := newClientView(t, newClientBackend(3, 0), 2, nil)
	ctx := context.Background()
	_ = v.SetPage(ctx, 2)
	r := v.Load(ctx)
	if len(r.Items) != 1 || r.Items[0].ID() != "c3" {
		t.Fatalf("page 2 = %+v", r.Items)
	}

	if err := v.Perform(ctx, "block", "c3"); err != nil {
		t.Fatalf("Perform() error: %v", err)
	}
	if info := v.Pagination(); info.CurrentPage != 1 || info.TotalItems != 2 {
		t.Errorf("pagination = %+v; want back on page 1", info)
	}
}

func TestView_Get(t *testing.T) {
	b := newClientBackend(2, 0)
	v, _ := newClientView(t, b, 10, nil)
	ctx := context.Background()

	rec, err := v.Get(ctx, "c2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec.ID() != "c2" || rec["phoneNumber"] != "+99365000002" {
		t.Errorf("record = %v", rec)
	}
	if _, err := v.Get(ctx, "c9"); !domain.IsNotFound(err) {
		t.Errorf("Get(missing) error = %v; want not found", err)
	}

	brands := newMemBackend(1)
	bv, _ := newTestView(t, brands, 10, nil)
	if _, err := bv.Get(ctx, "r1"); !domain.IsNotFound(err) {
		t.Errorf("Get() on a list-only resource error = %v; want not found", err)
	}
	if brands.count("get") != 0 {
		t.Error("list-only resources must not fetch single records")
	}
}
