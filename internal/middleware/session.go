package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const (
	sessionContextKey = "session_id"

	// DefaultSessionCookie names the dashboard session cookie.
	DefaultSessionCookie = "rentadmin_session"
	// DefaultSessionMaxAge bounds how long an idle browser keeps its
	// workspace.
	DefaultSessionMaxAge = 7 * 24 * time.Hour
)

// SessionConfig controls the dashboard session cookie.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Session returns a gin middleware that identifies the browser session owning
// a dashboard workspace.
//
// A cookie carrying a valid UUID is reused; anything else is replaced with a
// new one. The cookie is HttpOnly and SameSite=Strict and is refreshed on
// every request so an active session does not expire. The id is stored under
// "session_id" in the gin.Context and attached to the Go context for logging.
func Session(cfg SessionConfig) gin.HandlerFunc {
	name := cfg.CookieName
	if name == "" {
		name = DefaultSessionCookie
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}

	return func(c *gin.Context) {
		id := ""
		if v, err := c.Cookie(name); err == nil {
			if parsed, perr := uuid.Parse(v); perr == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(name, id, int(maxAge/time.Second), "/", "", cfg.Secure, true)
		c.Set(sessionContextKey, id)

		ctx := logger.WithContextAttrs(c.Request.Context(), slog.String("session_id", id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSessionID returns the dashboard session id, or "" when the Session
// middleware did not run.
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
