package bootstrap

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/groundwork-cm/groundwork-backend/internal/api/http"
	"github.com/groundwork-cm/groundwork-backend/internal/api/http/middleware"
	"github.com/groundwork-cm/groundwork-backend/internal/api/http/routes"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	AdminAPIKey    string
	Authenticate   gin.HandlerFunc
	DB             *db.DB
	Redis          *redis.Client
	Services       *Services
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", tenancy.Header, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	var pinger interface{ PingContext(ctx context.Context) error }
	if dep.DB != nil {
		pinger = dep.DB
	}
	httpapi.NewHealthHandler(dep.ServiceName, dep.Version, pinger, dep.Redis).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	svc := dep.Services
	v1 := routes.V1Deps{
		Authenticate: dep.Authenticate,
		AdminAPIKey:  dep.AdminAPIKey,
		Resolver:     svc.Resolver,
		Limiter:      middleware.NewTenantLimiter(dep.RateLimitRPS, dep.RateLimitBurst),
		Tenants:      svc.Tenants,
		Projects:     svc.Projects,
		Bids:         svc.Bids,
		Contracts:    svc.Contracts,
		ChangeOrders: svc.ChangeOrders,
		Employees:    svc.Employees,
		TimeEntries:  svc.TimeEntries,
		Payroll:      svc.Payroll,
		RFIs:         svc.RFIs,
	}
	routes.RegisterAdminV1(r, v1)
	routes.RegisterV1(r, v1)
	return r
}
