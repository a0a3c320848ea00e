package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/rentadmin/internal/middleware"
	"github.com/simp-lee/rentadmin/internal/pkg"
	"github.com/simp-lee/rentadmin/internal/state"
)

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules []Module
	Store   state.Store
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Session middleware.SessionConfig
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}

	r.GET("/health", healthHandler(deps.Store))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api/v1", middleware.Session(deps.Session))
	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, pkg.Response{Code: http.StatusNotFound, Message: "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, pkg.Response{Code: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})
	return nil
}

// healthHandler pings the preference store and reports status.
func healthHandler(store state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, storeStatus, code := "ok", "ok", http.StatusOK

		if store == nil {
			storeStatus = "error"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				storeStatus = "error"
			}
		}
		if storeStatus != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status": status,
			"components": gin.H{
				"state": storeStatus,
			},
		})
	}
}
