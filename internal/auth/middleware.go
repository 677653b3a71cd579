package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/vento/pkg/types"
)

const sessionKey = "vento.session"

// UserLookup re-reads an account so role changes and deletions apply to
// live sessions.
type UserLookup interface {
	Lookup(ctx context.Context, username string) (types.User, error)
}

// WithLookup makes Session refresh every parsed session from l.
func (m *Manager) WithLookup(l UserLookup) *Manager {
	m.lookup = l
	return m
}

// SetCookie stores token in the session cookie.
func (m *Manager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}

// SignIn issues a token for u and sets the cookie.
func (m *Manager) SignIn(c *gin.Context, u types.SessionUser) error {
	token, err := m.Issue(u)
	if err != nil {
		return err
	}
	m.SetCookie(c, token)
	c.Set(sessionKey, u)
	return nil
}

// Session parses the cookie, or an Authorization bearer token, and stores
// the session in the gin context. It never rejects a request.
func (m *Manager) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(CookieName)
		}
		if token == "" {
			c.Next()
			return
		}
		u, err := m.Parse(token)
		if err != nil {
			c.Next()
			return
		}
		if m.lookup != nil {
			cur, err := m.lookup.Lookup(c.Request.Context(), u.Username)
			if errors.Is(err, types.ErrUserNotFound) {
				m.ClearCookie(c)
				c.Next()
				return
			}
			if err == nil {
				u = cur.Session()
			}
		}
		c.Set(sessionKey, u)
		c.Next()
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// CurrentUser returns the session stored by Session.
func CurrentUser(c *gin.Context) (types.SessionUser, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return types.SessionUser{}, false
	}
	u, ok := v.(types.SessionUser)
	return u, ok
}

// RequireUser rejects API requests without a session with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects API requests from non-admins with 401 or 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// RequirePageUser redirects signed-out page requests to /login.
func RequirePageUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePageAdmin redirects signed-out visitors to /login and non-admins
// to /menu.
func RequirePageAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		if !u.IsAdmin {
			c.Redirect(http.StatusSeeOther, "/menu")
			c.Abort()
			return
		}
		c.Next()
	}
}
