package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/bids"
	"github.com/groundwork-cm/groundwork-backend/internal/changeorders"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/payroll"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/rfis"
	"github.com/groundwork-cm/groundwork-backend/internal/storage"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
)

// Services holds every domain service wired to one database and Redis client.
type Services struct {
	Resolver     *tenancy.Resolver
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

// NewServices wires the services. rdb and files may be nil.
func NewServices(database *db.DB, rdb *redis.Client, files storage.Presigner, cfg config.TenancyConfig) *Services {
	pub := events.NewRedisPublisher(rdb)

	tenantRepo := tenancy.NewRepo(database)
	resolver := tenancy.NewResolver(tenantRepo, rdb, cfg.CacheSize, cfg.CacheTTL)

	projectSvc := projects.NewService(database, projects.NewRepo(), pub)
	contractSvc := contracts.NewService(database, contracts.NewRepo(), projectSvc, pub)
	employeeSvc := employees.NewService(database, employees.NewRepo(), pub)
	timeSvc := timetracking.NewService(database, timetracking.NewRepo(), employeeSvc, projectSvc, pub)

	return &Services{
		Resolver:     resolver,
		Tenants:      tenancy.NewService(tenantRepo, resolver),
		Projects:     projectSvc,
		Bids:         bids.NewService(database, bids.NewRepo(), projectSvc, contractSvc, pub),
		Contracts:    contractSvc,
		ChangeOrders: changeorders.NewService(database, changeorders.NewRepo(), contractSvc, pub),
		Employees:    employeeSvc,
		TimeEntries:  timeSvc,
		Payroll:      payroll.NewService(database, payroll.NewRepo(), employeeSvc, timeSvc, pub),
		RFIs:         rfis.NewService(database, rfis.NewRepo(), projectSvc, files, pub),
	}
}
