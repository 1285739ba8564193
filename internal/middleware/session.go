package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-registration-portal/internal/service"
)

// ContextSessionKey is the gin context key storing the portal session.
const ContextSessionKey = "portalSession"

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session resolves the browser's portal session from its cookie, creating one when the
// cookie is missing or stale, and refreshes the cookie on every request.
func Session(sessions *service.SessionService, opts SessionOptions) gin.HandlerFunc {
	if opts.CookieName == "" {
		opts.CookieName = "portal_session"
	}
	return func(c *gin.Context) {
		id, _ := c.Cookie(opts.CookieName)
		sess, _ := sessions.Resolve(c.Request.Context(), id)

		maxAge := 0
		if opts.TTL > 0 {
			maxAge = int(opts.TTL / time.Second)
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(opts.CookieName, sess.ID, maxAge, "/", "", opts.Secure, true)
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// SessionFrom returns the session attached by Session, or nil.
func SessionFrom(c *gin.Context) *service.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	sess, ok := value.(*service.Session)
	if !ok {
		return nil
	}
	return sess
}
