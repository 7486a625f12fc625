package timetracking_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db/dbtest"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/employees/employeestest"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/projects/projectstest"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking/timetrackingtest"
)

const tenantID = "6f1c2a4e-8d1b-4c8e-9a55-0f7e3b2d9c11"

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc       *timetracking.Service
	entries   *timetrackingtest.Store
	employees *employeestest.Store
	projects  *projectstest.Store
	events    *events.Recorder

	worker  *employees.Employee
	project *projects.Project
}

func newFixture() *fixture {
	f := &fixture{
		entries:   timetrackingtest.NewStore(),
		employees: employeestest.NewStore(),
		projects:  projectstest.NewStore(),
		events:    &events.Recorder{},
	}
	runner := &dbtest.Runner{}
	empSvc := employees.NewService(runner, f.employees, nil)
	prjSvc := projects.NewService(runner, f.projects, nil)
	f.svc = timetracking.NewService(runner, f.entries, empSvc, prjSvc, f.events)

	f.worker = f.employees.Put(employees.Employee{
		EmployeeNumber:  "E-1",
		FirstName:       "Rosa",
		LastName:        "Diaz",
		PayType:         employees.PayHourly,
		HourlyRateCents: 3_000,
		HireDate:        date("2026-01-05"),
	})
	f.project = f.projects.Put(projects.Project{Name: "Depot", Status: projects.StatusActive})
	return f
}

func (f *fixture) create(t *testing.T, day string, minutes int) *timetracking.Entry {
	t.Helper()
	e, err := f.svc.Create(context.Background(), tenantID, timetracking.CreateTimeEntryRequest{
		EmployeeID: f.worker.ID,
		ProjectID:  f.project.ID,
		WorkDate:   day,
		Minutes:    minutes,
	})
	require.NoError(t, err)
	return e
}

func TestCanTransition(t *testing.T) {
	assert.True(t, timetracking.CanTransition(timetracking.StatusDraft, timetracking.StatusSubmitted))
	assert.True(t, timetracking.CanTransition(timetracking.StatusRejected, timetracking.StatusSubmitted))
	assert.True(t, timetracking.CanTransition(timetracking.StatusApproved, timetracking.StatusPaid))
	assert.False(t, timetracking.CanTransition(timetracking.StatusDraft, timetracking.StatusApproved))
	assert.False(t, timetracking.CanTransition(timetracking.StatusPaid, timetracking.StatusDraft))
	assert.False(t, timetracking.CanTransition(timetracking.StatusApproved, timetracking.StatusRejected))
}

func TestCreate(t *testing.T) {
	f := newFixture()
	e := f.create(t, "2026-03-02", 480)
	assert.Equal(t, timetracking.StatusDraft, e.Status)
	assert.Equal(t, []string{"time_entry.created"}, f.events.Types())
}

func TestCreate_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := func(day string, minutes int) timetracking.CreateTimeEntryRequest {
		return timetracking.CreateTimeEntryRequest{EmployeeID: f.worker.ID, ProjectID: f.project.ID, WorkDate: day, Minutes: minutes}
	}

	_, err := f.svc.Create(ctx, tenantID, req("2026-03-02", 0))
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "minutes")

	_, err = f.svc.Create(ctx, tenantID, req("2026-03-02", 1441))
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.Create(ctx, tenantID, req("2026-01-04", 60))
	assert.ErrorIs(t, err, timetracking.ErrNotEmployed)

	f.create(t, "2026-03-02", 1000)
	_, err = f.svc.Create(ctx, tenantID, req("2026-03-02", 441))
	assert.ErrorIs(t, err, timetracking.ErrDailyLimit)
	f.create(t, "2026-03-02", 440)

	planning := f.projects.Put(projects.Project{Name: "Later", Status: projects.StatusPlanning})
	r := req("2026-03-03", 60)
	r.ProjectID = planning.ID
	_, err = f.svc.Create(ctx, tenantID, r)
	assert.ErrorIs(t, err, projects.ErrNotActive)

	term := date("2026-06-30")
	gone := f.employees.Put(employees.Employee{
		EmployeeNumber: "E-2", PayType: employees.PayHourly, HourlyRateCents: 1,
		HireDate: date("2026-01-01"), TerminationDate: &term, Status: employees.StatusTerminated,
	})
	r = req("2026-03-03", 60)
	r.EmployeeID = gone.ID
	_, err = f.svc.Create(ctx, tenantID, r)
	assert.ErrorIs(t, err, employees.ErrTerminated)
}

func TestRejectedMinutesDoNotCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.create(t, "2026-03-02", 1440)
	_, err := f.svc.Submit(ctx, tenantID, e.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, tenantID, "lead-1", e.ID, timetracking.RejectRequest{Reason: "wrong day"})
	require.NoError(t, err)

	f.create(t, "2026-03-02", 60)
}

func TestApprovalFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.create(t, "2026-03-02", 480)

	_, err := f.svc.Approve(ctx, tenantID, "lead-1", e.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	e, err = f.svc.Submit(ctx, tenantID, e.ID)
	require.NoError(t, err)
	require.NotNil(t, e.SubmittedAt)

	_, err = f.svc.Update(ctx, tenantID, e.ID, timetracking.UpdateTimeEntryRequest{})
	assert.ErrorIs(t, err, timetracking.ErrLocked)

	_, err = f.svc.Reject(ctx, tenantID, "lead-1", e.ID, timetracking.RejectRequest{Reason: "  "})
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)

	e, err = f.svc.Reject(ctx, tenantID, "lead-1", e.ID, timetracking.RejectRequest{Reason: "split by cost code"})
	require.NoError(t, err)
	assert.Equal(t, timetracking.StatusRejected, e.Status)
	assert.Equal(t, "split by cost code", *e.RejectionReason)

	minutes := 450
	e, err = f.svc.Update(ctx, tenantID, e.ID, timetracking.UpdateTimeEntryRequest{Minutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, timetracking.StatusDraft, e.Status)
	assert.Nil(t, e.RejectionReason)
	assert.Equal(t, 450, e.Minutes)

	_, err = f.svc.Submit(ctx, tenantID, e.ID)
	require.NoError(t, err)
	e, err = f.svc.Approve(ctx, tenantID, "lead-1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, timetracking.StatusApproved, e.Status)
	assert.Equal(t, "lead-1", *e.DecidedBy)

	assert.ErrorIs(t, f.svc.Delete(ctx, tenantID, e.ID), timetracking.ErrLocked)

	assert.Equal(t, []string{
		"time_entry.created", "time_entry.submitted", "time_entry.rejected",
		"time_entry.submitted", "time_entry.approved",
	}, f.events.Types())
}

func TestResubmitRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.create(t, "2026-03-02", 60)
	_, err := f.svc.Submit(ctx, tenantID, e.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, tenantID, "lead-1", e.ID, timetracking.RejectRequest{Reason: "check"})
	require.NoError(t, err)

	e, err = f.svc.Submit(ctx, tenantID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, timetracking.StatusSubmitted, e.Status)
	assert.Nil(t, e.RejectionReason)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	e := f.create(t, "2026-03-02", 60)
	require.NoError(t, f.svc.Delete(context.Background(), tenantID, e.ID))
	assert.Empty(t, f.entries.Rows)
}

func TestPayrollHelpers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	batch := "00000000-0000-4000-e000-000000000001"

	in := f.entries.Put(timetracking.Entry{EmployeeID: f.worker.ID, WorkDate: date("2026-03-02"), Minutes: 60, Status: timetracking.StatusApproved})
	f.entries.Put(timetracking.Entry{EmployeeID: f.worker.ID, WorkDate: date("2026-03-20"), Minutes: 60, Status: timetracking.StatusApproved})
	f.entries.Put(timetracking.Entry{EmployeeID: f.worker.ID, WorkDate: date("2026-03-03"), Minutes: 60, Status: timetracking.StatusSubmitted})

	claimed, err := f.svc.ClaimWith(ctx, nil, batch, date("2026-03-01"), date("2026-03-14"))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, in.ID, claimed[0].ID)

	again, err := f.svc.ClaimWith(ctx, nil, "other", date("2026-03-01"), date("2026-03-14"))
	require.NoError(t, err)
	assert.Empty(t, again)

	n, err := f.svc.ReleaseWith(ctx, nil, batch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.svc.ClaimWith(ctx, nil, batch, date("2026-03-01"), date("2026-03-14"))
	require.NoError(t, err)
	n, err = f.svc.MarkPaidWith(ctx, nil, batch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, timetracking.StatusPaid, f.entries.Rows[in.ID].Status)
}

func TestList_Validation(t *testing.T) {
	f := newFixture()
	from, to := date("2026-03-10"), date("2026-03-01")
	_, err := f.svc.List(context.Background(), tenantID, timetracking.ListFilter{Status: "lost", EmployeeID: "x", From: &from, To: &to}, paging.Params{})
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "status")
	assert.Contains(t, vErr.Fields, "employee_id")
	assert.Contains(t, vErr.Fields, "to")
}

func TestHandler(t *testing.T) {
	f := newFixture()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		tenancy.Set(c, &tenancy.Tenant{ID: tenantID, Slug: "acme", Status: tenancy.StatusActive})
		c.Next()
	})
	timetracking.NewHandler(f.svc).Register(r.Group("/time-entries"))

	body := `{"employee_id":"` + f.worker.ID + `","project_id":"` + f.project.ID + `","work_date":"2026-03-02","minutes":90}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/time-entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"work_date":"2026-03-02"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/time-entries?from=2026-03-01&to=2026-03-31&employee_id="+f.worker.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"minutes":90`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/time-entries?from=March", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/time-entries/00000000-0000-4000-d000-000000000099/submit", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

var entryCols = []string{"id", "employee_id", "project_id", "work_date", "minutes", "cost_code", "notes", "status",
	"submitted_at", "decided_by", "decided_at", "rejection_reason", "payroll_batch_id", "created_at", "updated_at"}

func TestRepo_Claim(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	batch := "0b7c6f3e-2a41-4a53-9d0e-5c1f8e7d6a21"
	from, to := date("2026-03-01"), date("2026-03-14")
	now := time.Now()
	mock.ExpectQuery(`UPDATE time_entries\s+SET payroll_batch_id = \$1`).
		WithArgs(batch, from, to).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("e1", "emp", "prj", date("2026-03-02"), 480, nil, nil, "approved", now, "lead", now, nil, batch, now, now))

	got, err := timetracking.NewRepo().Claim(context.Background(), sqlDB, batch, from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].PayrollBatchID)
	assert.Equal(t, batch, *got[0].PayrollBatchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_MinutesOn(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	day := date("2026-03-02")
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(minutes\), 0\)`).
		WithArgs("emp", day, "").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(600))

	n, err := timetracking.NewRepo().MinutesOn(context.Background(), sqlDB, "emp", day, "")
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
