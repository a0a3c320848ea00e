// Package state persists the page, page size and filter every dashboard
// session last used for each resource list.
package state

import (
	"context"
	"fmt"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Store is a pagination preference store. It satisfies
// listing.PreferenceStore.
type Store interface {
	Load(ctx context.Context, sessionID, resource string) (domain.PageRequest, bool, error)
	Save(ctx context.Context, sessionID, resource string, req domain.PageRequest) error
	Ping(ctx context.Context) error
	Close() error
}

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverDatabase = "database"
	DriverRedis    = "redis"
)

func validate(sessionID, resource string, req domain.PageRequest) error {
	if sessionID == "" || resource == "" {
		return domain.NewAppError(domain.CodeValidation, "session id and resource are required", nil)
	}
	if req.Page < 1 || req.PageSize < 1 {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid page preference %d/%d", req.Page, req.PageSize), nil)
	}
	return nil
}
