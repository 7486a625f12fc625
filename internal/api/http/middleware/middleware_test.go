package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		seen = logging.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 200))
	r.ServeHTTP(rr, req)
	assert.Len(t, seen, 36)
}

func limitedRouter(l *TenantLimiter) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Tenant"); id != "" {
			tenancy.Set(c, &tenancy.Tenant{ID: id, Slug: id, Status: tenancy.StatusActive})
		}
		c.Next()
	})
	r.Use(RateLimit(l))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, tenant string) int {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if tenant != "" {
		req.Header.Set("X-Test-Tenant", tenant)
	}
	r.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimit_PerTenant(t *testing.T) {
	r := limitedRouter(NewTenantLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, hit(r, "a"))
	assert.Equal(t, http.StatusOK, hit(r, "a"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "a"))

	assert.Equal(t, http.StatusOK, hit(r, "b"))
	assert.Equal(t, http.StatusOK, hit(r, ""))
}

func TestRateLimit_Disabled(t *testing.T) {
	r := limitedRouter(NewTenantLimiter(0, 1))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "a"))
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.CollectAndCount(requestDuration)
	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	}
	assert.Equal(t, before+1, testutil.CollectAndCount(requestDuration))
}
