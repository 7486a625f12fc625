package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/api/http/middleware"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/bids"
	"github.com/groundwork-cm/groundwork-backend/internal/changeorders"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/payroll"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/rfis"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
)

type V1Deps struct {
	Authenticate gin.HandlerFunc
	AdminAPIKey  string
	Resolver     *tenancy.Resolver
	Limiter      *middleware.TenantLimiter

	Tenants      *tenancy.Service
	Projects     *projects.Service
	Bids         *bids.Service
	Contracts    *contracts.Service
	ChangeOrders *changeorders.Service
	Employees    *employees.Service
	TimeEntries  *timetracking.Service
	Payroll      *payroll.Service
	RFIs         *rfis.Service
}

// RegisterAdminV1 mounts tenant administration behind the admin API key.
func RegisterAdminV1(r *gin.Engine, dep V1Deps) {
	admin := r.Group("/admin/v1")
	admin.Use(auth.APIKeyMiddleware(dep.AdminAPIKey))
	tenancy.NewHandler(dep.Tenants).Register(admin.Group("/tenants"))
}

// RegisterV1 mounts the tenant API. Every route runs after authentication,
// tenant resolution and the per-tenant rate limiter, in that order.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	api.Use(dep.Authenticate, tenancy.Middleware(dep.Resolver), middleware.RateLimit(dep.Limiter))

	projects.NewHandler(dep.Projects).Register(api.Group("/projects"))
	bids.NewHandler(dep.Bids).Register(api.Group("/bids"))
	contracts.NewHandler(dep.Contracts).Register(api.Group("/contracts"))
	changeorders.NewHandler(dep.ChangeOrders).Register(api)
	employees.NewHandler(dep.Employees).Register(api.Group("/employees"))
	timetracking.NewHandler(dep.TimeEntries).Register(api.Group("/time-entries"))
	payroll.NewHandler(dep.Payroll).Register(api.Group("/payroll-batches"))
	rfis.NewHandler(dep.RFIs).Register(api.Group("/rfis"))
}
