package listing

import (
	"context"
	"fmt"
	"sync"

	"github.com/simp-lee/rentadmin/internal/domain"
)

var brandRes = domain.Resource{
	Name:     "brands",
	Label:    "Brand",
	Path:     "/car-brands",
	ListKey:  "carBrends",
	Required: []string{"carBrend"},
	FieldLabels: map[string]string{
		"carBrend": "Brand name",
	},
}

var clientRes = domain.Resource{
	Name:     "clients",
	Label:    "Client",
	Path:     "/users",
	ListKey:  "users",
	Required: []string{"phoneNumber"},
	Filters: []domain.Filter{
		{Name: "active", Label: "Active", Query: map[string]string{"status": "active"}},
		{Name: "blocked", Label: "Blocked", Query: map[string]string{"status": "blocked"}},
	},
	Actions: []domain.Action{
		{Name: "block", Done: "blocked", Method: "POST", Path: "/users/admin/block/{id}"},
		{Name: "unblock", Done: "unblocked", Method: "DELETE", Path: "/users/admin/block/{id}"},
	},
	Detail: true,
}

// memBackend is an in-memory marketplace backend for one resource.
type memBackend struct {
	mu      sync.Mutex
	records []domain.Record
	nextID  int
	calls   map[string]int

	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error
	performErr error

	// gate, when set, blocks mutations until it is closed.
	gate chan struct{}
}

func newMemBackend(n int) *memBackend {
	b := &memBackend{calls: make(map[string]int)}
	for i := 0; i < n; i++ {
		b.nextID++
		b.records = append(b.records, domain.Record{"id": fmt.Sprintf("r%d", b.nextID), "carBrend": fmt.Sprintf("Brand %d", b.nextID)})
	}
	return b
}

func (b *memBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *memBackend) List(_ context.Context, _ domain.Resource, req domain.PageRequest) (domain.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["list"]++
	if b.listErr != nil {
		return domain.Page{}, b.listErr
	}
	// A filter name selects records by their status field.
	matched := b.records
	if req.Filter != "" {
		matched = nil
		for _, rec := range b.records {
			if rec["status"] == req.Filter {
				matched = append(matched, rec)
			}
		}
	}
	start := (req.Page - 1) * req.PageSize
	items := []domain.Record{}
	for i := start; i < len(matched) && i < start+req.PageSize; i++ {
		items = append(items, matched[i])
	}
	return domain.Page{Items: items, TotalCount: len(matched)}, nil
}

func (b *memBackend) Get(_ context.Context, _ domain.Resource, id string) (domain.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["get"]++
	for _, rec := range b.records {
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, domain.NewAppError(domain.CodeNotFound, "", nil)
}

// Perform toggles the status field: block sets "blocked", anything else
// sets "active".
func (b *memBackend) Perform(_ context.Context, _ domain.Resource, action domain.Action, id string) error {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[action.Name]++
	if b.performErr != nil {
		return b.performErr
	}
	for _, rec := range b.records {
		if rec.ID() == id {
			if action.Name == "block" {
				rec["status"] = "blocked"
			} else {
				rec["status"] = "active"
			}
			return nil
		}
	}
	return domain.NewAppError(domain.CodeRejected, "User not found", nil)
}

// newClientBackend returns active clients c1..cActive followed by blocked
// ones.
func newClientBackend(active, blocked int) *memBackend {
	b := &memBackend{calls: make(map[string]int)}
	for i := 0; i < active+blocked; i++ {
		b.nextID++
		status := "active"
		if i >= active {
			status = "blocked"
		}
		b.records = append(b.records, domain.Record{
			"id":          fmt.Sprintf("c%d", b.nextID),
			"phoneNumber": fmt.Sprintf("+99365%06d", b.nextID),
			"status":      status,
		})
	}
	return b
}

func (b *memBackend) wait() {
	if b.gate != nil {
		<-b.gate
	}
}

func (b *memBackend) Create(_ context.Context, _ domain.Resource, payload domain.Fields) (domain.Record, error) {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["create"]++
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.nextID++
	rec := domain.Record{"id": fmt.Sprintf("r%d", b.nextID)}
	for k, v := range payload {
		rec[k] = v
	}
	b.records = append(b.records, rec)
	return rec, nil
}

func (b *memBackend) Update(_ context.Context, _ domain.Resource, id string, payload domain.Fields) (domain.Record, error) {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["update"]++
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	for _, rec := range b.records {
		if rec.ID() == id {
			for k, v := range payload {
				rec[k] = v
			}
			return rec, nil
		}
	}
	return nil, domain.NewAppError(domain.CodeNotFound, "Brand not found", nil)
}

func (b *memBackend) Delete(_ context.Context, _ domain.Resource, id string) error {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["delete"]++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for i, rec := range b.records {
		if rec.ID() == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return nil
		}
	}
	return domain.NewAppError(domain.CodeRejected, "Brand not found", nil)
}

type listReply struct {
	page domain.Page
	err  error
}

type listCall struct {
	req   domain.PageRequest
	reply chan listReply
}

// chanBackend hands every List call to the test, which answers it.
type chanBackend struct {
	*memBackend
	calls chan listCall
}

func newChanBackend() *chanBackend {
	return &chanBackend{memBackend: newMemBackend(0), calls: make(chan listCall)}
}

func (b *chanBackend) List(_ context.Context, _ domain.Resource, req domain.PageRequest) (domain.Page, error) {
	c := listCall{req: req, reply: make(chan listReply, 1)}
	b.calls <- c
	r := <-c.reply
	return r.page, r.err
}

func recordsNamed(names ...string) []domain.Record {
	out := make([]domain.Record, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Record{"id": n, "carBrend": n})
	}
	return out
}

func mustCache(opts CacheOptions) *Cache {
	c, err := NewCache(opts)
	if err != nil {
		panic(err)
	}
	return c
}

type memStore struct {
	mu   sync.Mutex
	data map[string]domain.PageRequest
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]domain.PageRequest)}
}

func (s *memStore) Load(_ context.Context, sessionID, resource string) (domain.PageRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.data[sessionID+"/"+resource]
	return req, ok, nil
}

func (s *memStore) Save(_ context.Context, sessionID, resource string, req domain.PageRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID+"/"+resource] = req
	return nil
}
