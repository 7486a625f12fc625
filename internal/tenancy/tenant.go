// Package tenancy resolves the tenant of each request and administers tenants.
package tenancy

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"

	// Header carries a tenant slug or id.
	Header = "X-Tenant"

	ctxTenantKey = "tenant"
)

var (
	ErrTenantNotFound  = apperr.NotFound("tenant not found")
	ErrTenantSuspended = apperr.Forbidden("tenant is suspended")
	ErrTenantExists    = apperr.Conflict("tenant slug already exists")
)

// Tenant is one customer organisation. Tenant rows are not row-level secured.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Tenant) Active() bool { return t.Status == StatusActive }

type tenantCtxKey struct{}

// WithTenant stores t in ctx.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, t)
}

// FromContext returns the tenant resolved for this request.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(*Tenant)
	return t, ok && t != nil
}

// ID returns the resolved tenant id from a gin context, or "".
func ID(c *gin.Context) string {
	if v, ok := c.Get(ctxTenantKey); ok {
		if t, ok := v.(*Tenant); ok {
			return t.ID
		}
	}
	return ""
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
