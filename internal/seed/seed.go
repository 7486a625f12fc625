// Package seed loads a YAML fixture of tenants, projects and employees and
// creates them through the domain services. Running it twice is safe.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

type Fixture struct {
	Tenants []Tenant `yaml:"tenants"`
}

type Tenant struct {
	Slug      string     `yaml:"slug"`
	Name      string     `yaml:"name"`
	Projects  []Project  `yaml:"projects"`
	Employees []Employee `yaml:"employees"`
}

type Project struct {
	Name        string `yaml:"name"`
	ClientName  string `yaml:"client"`
	Address     string `yaml:"address"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	BudgetCents int64  `yaml:"budget_cents"`
}

type Employee struct {
	Number            string `yaml:"number"`
	FirstName         string `yaml:"first_name"`
	LastName          string `yaml:"last_name"`
	Email             string `yaml:"email"`
	JobTitle          string `yaml:"job_title"`
	Trade             string `yaml:"trade"`
	PayType           string `yaml:"pay_type"`
	HourlyRateCents   int64  `yaml:"hourly_rate_cents"`
	AnnualSalaryCents int64  `yaml:"annual_salary_cents"`
	HireDate          string `yaml:"hire_date"`
}

// Load decodes a fixture and rejects unknown keys.
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, t := range f.Tenants {
		if strings.TrimSpace(t.Slug) == "" {
			return nil, fmt.Errorf("tenants[%d]: slug is required", i)
		}
	}
	return &f, nil
}

type tenantAdmin interface {
	Create(ctx context.Context, req tenancy.CreateTenantRequest) (*tenancy.Tenant, error)
	List(ctx context.Context, status string) ([]tenancy.Tenant, error)
}

type projectService interface {
	Create(ctx context.Context, tenantID string, req projects.CreateProjectRequest) (*projects.Project, error)
	List(ctx context.Context, tenantID string, f projects.ListFilter, page paging.Params) ([]projects.Project, error)
}

type employeeService interface {
	Create(ctx context.Context, tenantID string, req employees.CreateEmployeeRequest) (*employees.Employee, error)
}

type Seeder struct {
	Tenants   tenantAdmin
	Projects  projectService
	Employees employeeService
}

// Result counts what Apply created. Existing rows are skipped, not counted.
type Result struct {
	Tenants   int
	Projects  int
	Employees int
}

func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Result, error) {
	var res Result
	for _, tf := range f.Tenants {
		t, created, err := s.tenant(ctx, tf)
		if err != nil {
			return res, fmt.Errorf("tenant %s: %w", tf.Slug, err)
		}
		if created {
			res.Tenants++
		}
		logger := log.WithField("tenant", t.Slug)

		for _, pf := range tf.Projects {
			ok, err := s.project(ctx, t.ID, pf)
			if err != nil {
				return res, fmt.Errorf("tenant %s project %q: %w", tf.Slug, pf.Name, err)
			}
			if ok {
				res.Projects++
			}
		}

		for _, ef := range tf.Employees {
			_, err := s.Employees.Create(ctx, t.ID, employees.CreateEmployeeRequest{
				EmployeeNumber:    ef.Number,
				FirstName:         ef.FirstName,
				LastName:          ef.LastName,
				Email:             optional(ef.Email),
				JobTitle:          ef.JobTitle,
				Trade:             optional(ef.Trade),
				PayType:           ef.PayType,
				HourlyRateCents:   ef.HourlyRateCents,
				AnnualSalaryCents: ef.AnnualSalaryCents,
				HireDate:          ef.HireDate,
			})
			switch {
			case errors.Is(err, employees.ErrExists):
				logger.WithField("employee", ef.Number).Debug("employee exists")
			case err != nil:
				return res, fmt.Errorf("tenant %s employee %s: %w", tf.Slug, ef.Number, err)
			default:
				res.Employees++
			}
		}
	}
	return res, nil
}

func (s *Seeder) tenant(ctx context.Context, tf Tenant) (*tenancy.Tenant, bool, error) {
	t, err := s.Tenants.Create(ctx, tenancy.CreateTenantRequest{Slug: tf.Slug, Name: tf.Name})
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, tenancy.ErrTenantExists) {
		return nil, false, err
	}

	all, err := s.Tenants.List(ctx, "")
	if err != nil {
		return nil, false, err
	}
	slug := strings.ToLower(strings.TrimSpace(tf.Slug))
	for i := range all {
		if all[i].Slug == slug {
			return &all[i], false, nil
		}
	}
	return nil, false, tenancy.ErrTenantNotFound
}

// project skips creation when a project with the same name already exists.
func (s *Seeder) project(ctx context.Context, tenantID string, pf Project) (bool, error) {
	existing, err := s.Projects.List(ctx, tenantID, projects.ListFilter{Search: pf.Name}, paging.Params{Limit: paging.MaxLimit})
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, strings.TrimSpace(pf.Name)) {
			return false, nil
		}
	}

	_, err = s.Projects.Create(ctx, tenantID, projects.CreateProjectRequest{
		Name:        pf.Name,
		ClientName:  pf.ClientName,
		Address:     pf.Address,
		StartDate:   optional(pf.StartDate),
		EndDate:     optional(pf.EndDate),
		BudgetCents: pf.BudgetCents,
	})
	return err == nil, err
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
