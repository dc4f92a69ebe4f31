package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TenantCookie carries the browser's session id.
	TenantCookie = "lucky_draw_tenant"
	// TenantHeader lets API clients pick a session explicitly.
	TenantHeader = "X-Tenant-ID"

	tenantKey       = "tenantID"
	tenantCookieAge = 365 * 24 * 60 * 60
)

// TenantMiddleware resolves the session id from the X-Tenant-ID header or the
// tenant cookie. Browsers without either get a fresh id in a cookie.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(TenantHeader); id != "" {
			if _, err := uuid.Parse(id); err != nil {
				errorJSON(c, http.StatusBadRequest, "invalid "+TenantHeader)
				return
			}
			c.Set(tenantKey, id)
			c.Next()
			return
		}

		id, err := c.Cookie(TenantCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(TenantCookie, id, tenantCookieAge, "/", "", false, true)
		}
		c.Set(tenantKey, id)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
