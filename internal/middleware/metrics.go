package middleware

import "github.com/gin-gonic/gin"

// RequestObserver records one observation per served request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int)
}

// Metrics returns a gin middleware reporting every request to obs, labelled
// by the matched route pattern so path ids do not explode cardinality.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		obs.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
