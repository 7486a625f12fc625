// Package auth authenticates callers and stores their identity on the request.
package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxIdentityKey = "identity"

// Identity is the authenticated caller. Tenants is nil when the identity
// carries no tenant restriction.
type Identity struct {
	UID     string
	Email   string
	Tenants []string
}

// CanAccess reports whether the identity may act inside the tenant slug.
func (i *Identity) CanAccess(slug string) bool {
	if i.Tenants == nil {
		return true
	}
	for _, t := range i.Tenants {
		if strings.EqualFold(t, slug) {
			return true
		}
	}
	return false
}

type identityCtxKey struct{}

func setIdentity(c *gin.Context, id *Identity) {
	c.Set(ctxIdentityKey, id)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityCtxKey{}, id))
}

// FromGin returns the identity set by the auth middleware.
func FromGin(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

// FromContext returns the identity stored on a request context.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return id, ok && id != nil
}

// UserID returns the caller uid, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	if id, ok := FromGin(c); ok {
		return id.UID
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
