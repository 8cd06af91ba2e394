package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextSessionIDKey holds the anonymous visitor session id.
	ContextSessionIDKey = "session_id"
	// SessionCookieName is the cookie carrying the session id.
	SessionCookieName = "sid"
	// SessionHeader lets non-browser clients supply their own session id.
	SessionHeader = "X-Session-ID"

	sessionMaxAge = 30 * 24 * 60 * 60
)

// Session resolves the visitor session id from the X-Session-ID header or the
// sid cookie and issues a fresh cookie when neither is present.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sid == "" {
			if v, err := c.Cookie(SessionCookieName); err == nil {
				sid = strings.TrimSpace(v)
			}
		}
		if sid == "" || len(sid) > 64 {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, sid, sessionMaxAge, "/", "", false, true)
		}
		c.Set(ContextSessionIDKey, sid)
		c.Next()
	}
}
