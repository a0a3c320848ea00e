package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/simp-lee/rentadmin/internal/domain"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 8 << 20
)

// Observer receives one observation per backend call.
type Observer interface {
	ObserveBackendCall(resource, op string, latency time.Duration, err error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RPS and Burst enable a client-side rate limit when RPS > 0.
	RPS   float64
	Burst int

	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Client talks to the marketplace REST backend and converts every envelope
// into canonical pages and records or a *domain.AppError.
type Client struct {
	base     *url.URL
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	observer Observer
	logger   *slog.Logger
}

// New creates a Client from opts.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base url %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q: host is required", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		token:    strings.TrimSpace(opts.Token),
		http:     hc,
		limiter:  limiter,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// List fetches one page of res.
func (c *Client) List(ctx context.Context, res domain.Resource, req domain.PageRequest) (domain.Page, error) {
	q := url.Values{}
	q.Set("currentPage", strconv.Itoa(req.Page))
	q.Set("pageSize", strconv.Itoa(req.PageSize))
	for k, v := range res.FilterQuery(req.Filter) {
		q.Set(k, v)
	}

	env, err := c.do(ctx, res.Name, "list", http.MethodGet, res.ListURL(), q, nil)
	if err != nil {
		return domain.Page{}, err
	}
	page, err := DecodePage(env.ResponseObject, res.ListKey)
	if err != nil {
		return domain.Page{}, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, err)
	}
	return page, nil
}

// Create posts payload to the resource's create endpoint.
func (c *Client) Create(ctx context.Context, res domain.Resource, payload domain.Fields) (domain.Record, error) {
	path, err := res.CreateURL(payload)
	if err != nil {
		return nil, err
	}
	env, err := c.do(ctx, res.Name, "create", http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, err
	}
	return c.record(env)
}

// Update sends a partial update for the record with the given id.
func (c *Client) Update(ctx context.Context, res domain.Resource, id string, payload domain.Fields) (domain.Record, error) {
	env, err := c.do(ctx, res.Name, "update", http.MethodPut, res.ItemURL(id), nil, payload)
	if err != nil {
		return nil, err
	}
	return c.record(env)
}

// Delete removes the record with the given id.
func (c *Client) Delete(ctx context.Context, res domain.Resource, id string) error {
	_, err := c.do(ctx, res.Name, "delete", http.MethodDelete, res.ItemURL(id), nil, nil)
	return err
}

// Get fetches the record with the given id.
func (c *Client) Get(ctx context.Context, res domain.Resource, id string) (domain.Record, error) {
	env, err := c.do(ctx, res.Name, "get", http.MethodGet, res.ItemURL(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return c.record(env)
}

// Perform runs a record action, such as blocking a client, on id.
func (c *Client) Perform(ctx context.Context, res domain.Resource, action domain.Action, id string) error {
	_, err := c.do(ctx, res.Name, action.Name, action.Method, action.URL(id), nil, nil)
	return err
}

func (c *Client) record(env *Envelope) (domain.Record, error) {
	rec, err := DecodeRecord(env.ResponseObject)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, err)
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, resource, op, method, path string, query url.Values, body any) (env *Envelope, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveBackendCall(resource, op, time.Since(start), err)
		}
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return nil, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, werr)
		}
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to build backend request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err),
		)
		return nil, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, err)
	}

	c.logger.DebugContext(ctx, "backend response",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	var decoded Envelope
	if derr := json.Unmarshal(raw, &decoded); derr != nil {
		// A non-JSON 404 still tells us the record is gone.
		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.NewAppError(domain.CodeNotFound, "", fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
		}
		return nil, domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message,
			fmt.Errorf("%s %s: malformed response (status %d): %w", method, path, resp.StatusCode, derr))
	}

	if resp.StatusCode >= http.StatusBadRequest || !decoded.Success {
		return nil, classify(method, path, resp.StatusCode, &decoded)
	}
	return &decoded, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// classify converts a rejected envelope into a domain error carrying the
// server message verbatim (possibly empty).
func classify(method, path string, httpStatus int, env *Envelope) error {
	status := httpStatus
	if env.StatusCode >= http.StatusBadRequest {
		status = env.StatusCode
	}
	cause := fmt.Errorf("%s %s: status %d", method, path, status)
	msg := string(env.Message)

	switch status {
	case http.StatusNotFound:
		return domain.NewAppError(domain.CodeNotFound, msg, cause)
	case http.StatusConflict:
		return domain.NewAppError(domain.CodeAlreadyExists, msg, cause)
	}
	if status >= http.StatusInternalServerError && msg == "" {
		return domain.NewAppError(domain.CodeTransport, domain.ErrTransport.Message, cause)
	}
	return domain.NewAppError(domain.CodeRejected, msg, cause)
}

// IsServerMessage reports whether err carries a message the backend wrote for
// the user, as opposed to a transport or internal failure.
func IsServerMessage(err error) bool {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) || appErr.Message == "" {
		return false
	}
	switch appErr.Code {
	case domain.CodeNotFound, domain.CodeAlreadyExists, domain.CodeRejected, domain.CodeValidation:
		return true
	}
	return false
}
