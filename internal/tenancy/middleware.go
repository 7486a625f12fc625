package tenancy

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
)

type tenantResolver interface {
	Resolve(ctx context.Context, ref string) (*Tenant, error)
}

// Middleware resolves the X-Tenant header and rejects unknown, suspended or
// foreign tenants before any handler runs.
func Middleware(resolver tenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := strings.TrimSpace(c.GetHeader(Header))
		if ref == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing " + Header + " header"})
			return
		}

		t, err := resolver.Resolve(c.Request.Context(), ref)
		if err != nil {
			apperr.Write(c, err)
			return
		}
		if !t.Active() {
			apperr.Write(c, ErrTenantSuspended)
			return
		}
		if id, ok := auth.FromGin(c); ok && !id.CanAccess(t.Slug) {
			apperr.Write(c, apperr.Forbidden("no access to tenant "+t.Slug))
			return
		}

		Set(c, t)
		c.Next()
	}
}

// Set binds t to the request. Handler tests use it to skip resolution.
func Set(c *gin.Context, t *Tenant) {
	c.Set(ctxTenantKey, t)
	ctx := WithTenant(c.Request.Context(), t)
	ctx = logging.WithTenantID(ctx, t.ID)
	c.Request = c.Request.WithContext(ctx)
}
