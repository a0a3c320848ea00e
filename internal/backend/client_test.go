package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/simp-lee/rentadmin/internal/domain"
)

var brands = domain.Resource{Name: "brands", Label: "Brand", Path: "/car-brands", ListKey: "carBrends"}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

// newBackend starts a test server that records requests and replies with handler.
func newBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Token: "tok-123", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, &reqs
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	tests := []string{"", "localhost:8080", "ftp://example.com", "http://"}
	for _, u := range tests {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
	if _, err := New(Options{BaseURL: "http://localhost:8080"}); err != nil {
		t.Errorf("New() error: %v", err)
	}
}

func TestClient_List(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"responseObject":{"carBrends":[{"id":"a","carBrend":"Chevrolet"}],"totalCount":45}}`)
	})

	page, err := c.List(context.Background(), brands, domain.PageRequest{Page: 3, PageSize: 20})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.TotalCount != 45 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}

	got := (*reqs)[0]
	if got.Method != http.MethodGet || got.Path != "/car-brands" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	if got.Query != "currentPage=3&pageSize=20" {
		t.Errorf("query = %q", got.Query)
	}
	if got.Auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got.Auth)
	}
}

func TestClient_ListFilter(t *testing.T) {
	clients, _ := domain.DefaultCatalog().Lookup("clients")
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"responseObject":{"users":[],"totalCount":0}}`)
	})

	if _, err := c.List(context.Background(), clients, domain.PageRequest{Page: 1, PageSize: 10, Filter: "blocked"}); err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got := (*reqs)[0].Query; got != "currentPage=1&pageSize=10&status=blocked" {
		t.Errorf("query = %q", got)
	}
}

func TestClient_GetAndPerform(t *testing.T) {
	clients, _ := domain.DefaultCatalog().Lookup("clients")
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"success":true,"responseObject":{"id":"u1","phoneNumber":"+998901234567"}}`)
		default:
			writeJSON(w, http.StatusOK, `{"success":true,"responseObject":null}`)
		}
	})
	ctx := context.Background()

	rec, err := c.Get(ctx, clients, "u1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec["phoneNumber"] != "+998901234567" {
		t.Errorf("record = %v", rec)
	}

	block, _ := clients.Action("block")
	unblock, _ := clients.Action("unblock")
	if err := c.Perform(ctx, clients, block, "u1"); err != nil {
		t.Fatalf("Perform(block) error: %v", err)
	}
	if err := c.Perform(ctx, clients, unblock, "u1"); err != nil {
		t.Fatalf("Perform(unblock) error: %v", err)
	}

	want := []struct{ method, path string }{
		{http.MethodGet, "/users/u1"},
		{http.MethodPost, "/users/admin/block/u1"},
		{http.MethodDelete, "/users/admin/block/u1"},
	}
	for i, w := range want {
		if got := (*reqs)[i]; got.Method != w.method || got.Path != w.path {
			t.Errorf("request %d = %s %s; want %s %s", i, got.Method, got.Path, w.method, w.path)
		}
	}
}

func TestClient_Create(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"success":true,"responseObject":{"id":"abc","carBrend":"Chevrolet"}}`)
	})

	rec, err := c.Create(context.Background(), brands, domain.Fields{"carBrend": "Chevrolet"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if rec.ID() != "abc" {
		t.Errorf("ID() = %q; want abc", rec.ID())
	}

	got := (*reqs)[0]
	if got.Method != http.MethodPost || got.Path != "/car-brands" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	if got.Body["carBrend"] != "Chevrolet" {
		t.Errorf("body = %v", got.Body)
	}
	if _, hasID := got.Body["id"]; hasID {
		t.Error("create payload must not carry an id")
	}
}

func TestClient_CreateWithPathPlaceholder(t *testing.T) {
	banners := domain.Resource{Name: "banners", Path: "/banners", CreatePath: "/banners/{carId}"}
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"responseObject":{"id":"b1"}}`)
	})

	if _, err := c.Create(context.Background(), banners, domain.Fields{"carId": "car-9", "title": "Sale"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if got := (*reqs)[0].Path; got != "/banners/car-9" {
		t.Errorf("path = %q; want /banners/car-9", got)
	}

	if _, err := c.Create(context.Background(), banners, domain.Fields{"title": "Sale"}); !domain.IsValidation(err) {
		t.Errorf("missing placeholder should be a validation error, got %v", err)
	}
	if len(*reqs) != 1 {
		t.Errorf("validation failure must not reach the backend, got %d requests", len(*reqs))
	}
}

func TestClient_UpdateAndDelete(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			writeJSON(w, http.StatusOK, `{"success":true,"responseObject":{"id":"xyz","carBrend":"BMW"}}`)
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, `{"success":true,"responseObject":null}`)
		}
	})

	rec, err := c.Update(context.Background(), brands, "xyz", domain.Fields{"carBrend": "BMW"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if rec["carBrend"] != "BMW" {
		t.Errorf("record = %v", rec)
	}
	if err := c.Delete(context.Background(), brands, "xyz"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if (*reqs)[0].Method != http.MethodPut || (*reqs)[0].Path != "/car-brands/xyz" {
		t.Errorf("update request = %+v", (*reqs)[0])
	}
	if (*reqs)[1].Method != http.MethodDelete || (*reqs)[1].Path != "/car-brands/xyz" {
		t.Errorf("delete request = %+v", (*reqs)[1])
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{"success false on 200", http.StatusOK, `{"success":false,"message":"Brand not found"}`, domain.IsRejected, "Brand not found"},
		{"http 404", http.StatusNotFound, `{"success":false,"message":"Brand not found"}`, domain.IsNotFound, "Brand not found"},
		{"envelope status 404", http.StatusOK, `{"success":false,"statusCode":404,"message":"gone"}`, domain.IsNotFound, "gone"},
		{"non-json 404", http.StatusNotFound, `Not Found`, domain.IsNotFound, ""},
		{"conflict", http.StatusConflict, `{"success":false,"message":"Brand already exists"}`, domain.IsAlreadyExists, "Brand already exists"},
		{"validation list", http.StatusBadRequest, `{"success":false,"message":["carBrend should not be empty"]}`, domain.IsRejected, "carBrend should not be empty"},
		{"5xx without message", http.StatusBadGateway, `{"success":false}`, domain.IsTransport, "could not complete request"},
		{"malformed", http.StatusOK, `<html>`, domain.IsTransport, "could not complete request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			err := c.Delete(context.Background(), brands, "xyz")
			if !tt.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
			if got := domain.MessageOf(err); got != tt.wantMsg {
				t.Errorf("message = %q; want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = c.List(context.Background(), brands, domain.PageRequest{Page: 1, PageSize: 10})
	if !domain.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if IsServerMessage(err) {
		t.Error("transport errors must not be treated as server messages")
	}
}

type observation struct {
	resource, op string
	err          error
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveBackendCall(resource, op string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{resource, op, err})
}

func TestClient_ObserverAndRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"responseObject":[]}`)
	}))
	t.Cleanup(srv.Close)

	obs := &fakeObserver{}
	c, err := New(Options{BaseURL: srv.URL, RPS: 1000, Burst: 2, Observer: obs})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.List(context.Background(), brands, domain.PageRequest{Page: 1, PageSize: 10}); err != nil {
			t.Fatalf("List() error: %v", err)
		}
	}
	if len(obs.obs) != 3 {
		t.Fatalf("observations = %d; want 3", len(obs.obs))
	}
	if obs.obs[0].resource != "brands" || obs.obs[0].op != "list" || obs.obs[0].err != nil {
		t.Errorf("observation = %+v", obs.obs[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow, _ := New(Options{BaseURL: srv.URL, RPS: 0.001, Burst: 1})
	_, _ = slow.List(context.Background(), brands, domain.PageRequest{Page: 1, PageSize: 10})
	_, err = slow.List(ctx, brands, domain.PageRequest{Page: 1, PageSize: 10})
	if !domain.IsTransport(err) {
		t.Errorf("rate limit wait on cancelled context should be a transport error, got %v", err)
	}
}

func TestIsServerMessage(t *testing.T) {
	if !IsServerMessage(domain.NewAppError(domain.CodeRejected, "Brand not found", nil)) {
		t.Error("rejection with message should be a server message")
	}
	if IsServerMessage(domain.NewAppError(domain.CodeRejected, "", nil)) {
		t.Error("rejection without message should not be a server message")
	}
	if IsServerMessage(errors.New("plain")) {
		t.Error("plain errors are not server messages")
	}
}
