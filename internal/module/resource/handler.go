package resource

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/rentadmin/internal/domain"
	"github.com/simp-lee/rentadmin/internal/listing"
	"github.com/simp-lee/rentadmin/internal/middleware"
	"github.com/simp-lee/rentadmin/internal/pkg"
)

const resourceContextKey = "resource"

// Handler serves the view API of every catalog resource.
type Handler struct {
	manager *listing.Manager
	logger  *slog.Logger
}

// NewHandler creates a Handler over the session workspaces of manager.
func NewHandler(manager *listing.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// bindResource stores the resource name of a route group in the gin.Context.
func bindResource(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(resourceContextKey, name)
		c.Next()
	}
}

// List handles GET /api/v1/{resource}. Optional filter, page_size and page
// query parameters are applied, in that order, before the active page is
// loaded.
func (h *Handler) List(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		q, err := pkg.ParsePageQuery(c)
		if err != nil {
			return err
		}
		ctx := c.Request.Context()
		if q.Filter != "" && q.Filter != v.Pagination().Filter {
			if err := v.SetFilter(ctx, q.Filter); err != nil {
				return err
			}
		}
		if q.PageSize > 0 && q.PageSize != v.Pagination().PageSize {
			if err := v.SetPageSize(ctx, q.PageSize); err != nil {
				return err
			}
		}
		if q.Page > 0 {
			if err := v.SetPage(ctx, q.Page); err != nil {
				return err
			}
		}
		v.Load(ctx)
		return nil
	})
}

// Refresh handles POST /api/v1/{resource}/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		v.Refresh(c.Request.Context())
		return nil
	})
}

// SetPage handles PUT /api/v1/{resource}/page.
func (h *Handler) SetPage(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		var req SetPageRequest
		if err := pkg.Bind(c, &req); err != nil {
			return err
		}
		if err := v.SetPage(c.Request.Context(), req.Page); err != nil {
			return err
		}
		v.Load(c.Request.Context())
		return nil
	})
}

// SetPageSize handles PUT /api/v1/{resource}/page-size.
func (h *Handler) SetPageSize(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		var req SetPageSizeRequest
		if err := pkg.Bind(c, &req); err != nil {
			return err
		}
		if err := v.SetPageSize(c.Request.Context(), req.PageSize); err != nil {
			return err
		}
		v.Load(c.Request.Context())
		return nil
	})
}

// SetFilter handles PUT /api/v1/{resource}/filter.
func (h *Handler) SetFilter(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		var req SetFilterRequest
		if err := pkg.Bind(c, &req); err != nil {
			return err
		}
		if err := v.SetFilter(c.Request.Context(), req.Filter); err != nil {
			return err
		}
		v.Load(c.Request.Context())
		return nil
	})
}

// Reset handles POST /api/v1/{resource}/reset.
func (h *Handler) Reset(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		v.Reset(c.Request.Context())
		v.Load(c.Request.Context())
		return nil
	})
}

// StartCreate handles POST /api/v1/{resource}/editor.
func (h *Handler) StartCreate(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		return v.StartCreate()
	})
}

// StartEdit handles POST /api/v1/{resource}/editor/:id.
func (h *Handler) StartEdit(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		return v.StartEdit(c.Param("id"))
	})
}

// UpdateDraft handles PATCH /api/v1/{resource}/editor.
func (h *Handler) UpdateDraft(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		var req UpdateDraftRequest
		if err := pkg.Bind(c, &req); err != nil {
			return err
		}
		return v.UpdateDraft(req.Fields)
	})
}

// CancelEdit handles DELETE /api/v1/{resource}/editor.
func (h *Handler) CancelEdit(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		v.CancelEdit()
		return nil
	})
}

// Submit handles POST /api/v1/{resource}/editor/submit. A successful
// submission invalidated the resource, so the active page is reloaded.
func (h *Handler) Submit(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		if _, err := v.Submit(c.Request.Context()); err != nil {
			return err
		}
		v.Load(c.Request.Context())
		return nil
	})
}

// Delete handles DELETE /api/v1/{resource}/:id.
func (h *Handler) Delete(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		return v.Delete(c.Request.Context(), c.Param("id"))
	})
}

// Perform handles POST /api/v1/{resource}/:id/actions/:action, such as
// blocking a client.
func (h *Handler) Perform(c *gin.Context) {
	h.handle(c, func(v *listing.View) error {
		return v.Perform(c.Request.Context(), c.Param("action"), c.Param("id"))
	})
}

// Get handles GET /api/v1/{resource}/:id. The record comes straight from
// the backend; the list view is left as it is.
func (h *Handler) Get(c *gin.Context) {
	_, v, ok := h.view(c)
	if !ok {
		return
	}
	rec, err := v.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		pkg.Error(c, err, nil)
		return
	}
	pkg.Success(c, RecordResponse{Resource: v.Resource().Name, Record: rec})
}

// view resolves the workspace and view of the request. On failure the
// error response has been written.
func (h *Handler) view(c *gin.Context) (*listing.Workspace, *listing.View, bool) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		pkg.Error(c, domain.NewAppError(domain.CodeInternal, "dashboard session missing", nil), nil)
		return nil, nil, false
	}
	ws := h.manager.Workspace(sessionID)
	v, err := ws.View(c.Request.Context(), c.GetString(resourceContextKey))
	if err != nil {
		pkg.Error(c, err, nil)
		return nil, nil, false
	}
	return ws, v, true
}

// handle resolves the session view, runs op and writes the view response.
// Errors are answered with their mapped status and still carry the view
// model and the drained notifications.
func (h *Handler) handle(c *gin.Context, op func(v *listing.View) error) {
	ws, v, ok := h.view(c)
	if !ok {
		return
	}

	opErr := op(v)
	if opErr != nil && domain.HTTPStatusCode(opErr) >= http.StatusInternalServerError && !domain.IsTransport(opErr) {
		h.logger.ErrorContext(c.Request.Context(), "view operation failed",
			slog.String("resource", v.Resource().Name),
			slog.Any("error", opErr),
		)
	}

	resp := ViewResponse{ViewModel: v.Model(), Notifications: ws.Inbox().Drain()}
	if n := len(resp.Notifications); n > 0 {
		last := resp.Notifications[n-1]
		pkg.SetToastHeader(c, last.Message, last.Type)
	}

	if opErr != nil {
		pkg.Error(c, opErr, resp)
		return
	}
	pkg.Success(c, resp)
}
