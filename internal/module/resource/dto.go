package resource

import (
	"github.com/simp-lee/rentadmin/internal/domain"
	"github.com/simp-lee/rentadmin/internal/listing"
)

// SetPageRequest is the body of PUT /{resource}/page.
type SetPageRequest struct {
	Page int `json:"page" form:"page" binding:"required,min=1"`
}

// SetPageSizeRequest is the body of PUT /{resource}/page-size.
type SetPageSizeRequest struct {
	PageSize int `json:"pageSize" form:"pageSize" binding:"required,min=1"`
}

// SetFilterRequest is the body of PUT /{resource}/filter.
type SetFilterRequest struct {
	Filter string `json:"filter" form:"filter" binding:"required"`
}

// UpdateDraftRequest is the body of PATCH /{resource}/editor.
type UpdateDraftRequest struct {
	Fields map[string]any `json:"fields" binding:"required"`
}

// ViewResponse is the data of every view API response: the view model plus
// the notifications drained from the session inbox.
type ViewResponse struct {
	listing.ViewModel
	Notifications []listing.Notification `json:"notifications"`
}

// RecordResponse is the data of GET /{resource}/:id.
type RecordResponse struct {
	Resource string        `json:"resource"`
	Record   domain.Record `json:"record"`
}
