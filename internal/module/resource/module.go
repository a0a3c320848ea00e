package resource

import "github.com/gin-gonic/gin"

// Module implements the app.Module interface for the catalog resources.
type Module struct {
	handler *Handler
	names   []string
}

// NewModule creates a Module serving the named resources.
// Panics if h is nil.
func NewModule(h *Handler, names []string) *Module {
	if h == nil {
		panic("resource.NewModule: handler must not be nil")
	}
	return &Module{handler: h, names: names}
}

// RegisterRoutes registers the view API of every resource under api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	h := m.handler
	for _, name := range m.names {
		g := api.Group("/"+name, bindResource(name))
		g.GET("", h.List)
		g.POST("/refresh", h.Refresh)
		g.PUT("/page", h.SetPage)
		g.PUT("/page-size", h.SetPageSize)
		g.PUT("/filter", h.SetFilter)
		g.POST("/reset", h.Reset)

		g.POST("/editor", h.StartCreate)
		g.PATCH("/editor", h.UpdateDraft)
		g.DELETE("/editor", h.CancelEdit)
		g.POST("/editor/submit", h.Submit)
		g.POST("/editor/:id", h.StartEdit)

		g.GET("/:id", h.Get)
		g.DELETE("/:id", h.Delete)
		g.POST("/:id/actions/:action", h.Perform)
	}
}
