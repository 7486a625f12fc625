package bids

import (
	"context"
	"fmt"
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
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts/contractstest"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/db/dbtest"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/projects/projectstest"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

const tenantID = "6f1c2a4e-8d1b-4c8e-9a55-0f7e3b2d9c11"

type memStore struct {
	rows map[string]*Bid
	seq  int
}

func (m *memStore) Insert(_ context.Context, _ db.Querier, b *Bid) error {
	m.seq++
	b.ID = fmt.Sprintf("00000000-0000-4000-b000-%012d", m.seq)
	b.Number = fmt.Sprintf("bid-%05d-0001", 10000+m.seq)
	for i := range b.Items {
		b.Items[i].ID = fmt.Sprintf("item-%d-%d", m.seq, i)
	}
	m.put(b)
	return nil
}

func (m *memStore) put(b *Bid) {
	cp := *b
	cp.Items = append([]LineItem(nil), b.Items...)
	m.rows[b.ID] = &cp
}

func (m *memStore) Get(_ context.Context, _ db.Querier, id string) (*Bid, error) {
	b, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	cp.Items = append([]LineItem(nil), b.Items...)
	return &cp, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Bid, error) {
	return m.Get(ctx, q, id)
}

func (m *memStore) List(_ context.Context, _ db.Querier, f ListFilter, _ paging.Params) ([]Bid, error) {
	var out []Bid
	for _, b := range m.rows {
		if f.Status == "" || b.Status == f.Status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, _ db.Querier, b *Bid) error {
	m.put(b)
	return nil
}

func (m *memStore) ReplaceItems(_ context.Context, _ db.Querier, b *Bid) error {
	m.put(b)
	return nil
}

func (m *memStore) Delete(_ context.Context, _ db.Querier, id string) error {
	delete(m.rows, id)
	return nil
}

func (m *memStore) ExpireDue(_ context.Context, _ db.Querier, today time.Time) ([]Bid, error) {
	var out []Bid
	for _, b := range m.rows {
		if b.Status == StatusDraft && b.DueDate.Before(today) {
			b.Status = StatusExpired
			out = append(out, Bid{ID: b.ID, Number: b.Number, Status: StatusExpired})
		}
	}
	return out, nil
}

type fixture struct {
	svc       *Service
	store     *memStore
	projects  *projectstest.Store
	contracts *contractstest.Store
	runner    *dbtest.Runner
	rec       *events.Recorder
}

func newFixture() *fixture {
	f := &fixture{
		store:     &memStore{rows: map[string]*Bid{}},
		projects:  projectstest.NewStore(),
		contracts: contractstest.NewStore(),
		runner:    &dbtest.Runner{},
		rec:       &events.Recorder{},
	}
	projectSvc := projects.NewService(f.runner, f.projects, nil)
	contractSvc := contracts.NewService(f.runner, f.contracts, projectSvc, nil)
	f.svc = NewService(f.runner, f.store, projectSvc, contractSvc, f.rec)
	f.svc.now = func() time.Time { return time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC) }
	return f
}

func sampleRequest() CreateBidRequest {
	return CreateBidRequest{
		Title:      "Warehouse slab",
		ClientName: "Northside Logistics",
		DueDate:    "2026-11-01",
		MarkupBps:  1250,
		Items: []LineItemInput{
			{Description: "Concrete", Quantity: "42.5", UnitCostCents: 13_999},
			{Description: "Rebar", Quantity: "3", UnitCostCents: 25_000},
		},
	}
}

func TestRecalculate(t *testing.T) {
	b := &Bid{MarkupBps: 1250, Items: []LineItem{
		{Quantity: 42_500, UnitCostCents: 13_999},
		{Quantity: 3_000, UnitCostCents: 25_000},
		{Quantity: 333, UnitCostCents: 100},
	}}
	b.Recalculate()

	assert.Equal(t, int64(594_958), b.Items[0].TotalCents) // 594957.5 rounds up
	assert.Equal(t, int64(75_000), b.Items[1].TotalCents)
	assert.Equal(t, int64(33), b.Items[2].TotalCents)
	assert.Equal(t, 3, b.Items[2].Position)
	assert.Equal(t, int64(669_991), b.SubtotalCents)
	assert.Equal(t, int64(83_749), b.MarkupCents) // 83748.875
	assert.Equal(t, int64(753_740), b.TotalCents)
}

func TestLineTotal_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		qty  string
		unit int64
		want int64
	}{
		{"0.145", 100, 15},
		{"0.285", 100, 29},
		{"0.29", 50, 15},
		{"0.565", 100, 57},
		{"42.5", 13_999, 594_958},
		{"1", 0, 0},
	}
	for _, tc := range cases {
		q, err := ParseQuantity(tc.qty)
		require.NoError(t, err, tc.qty)
		assert.Equal(t, tc.want, LineTotal(q, tc.unit), "%s x %d", tc.qty, tc.unit)
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
		ok   bool
	}{
		{"42.5", 42_500, true},
		{"0.001", 1, true},
		{"007", 7_000, true},
		{"99999999999.999", 99_999_999_999_999, true},
		{"1.0004", 0, false},
		{"1e3", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.000", 0, false},
		{"1.", 0, false},
		{".5", 0, false},
		{"", 0, false},
		{"100000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestQuantity_Text(t *testing.T) {
	assert.Equal(t, "42.5", Quantity(42_500).String())
	assert.Equal(t, "3", Quantity(3_000).String())
	assert.Equal(t, "0.333", Quantity(333).String())

	out, err := Quantity(1_050).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1.05", string(out))

	var q Quantity
	require.NoError(t, q.Scan([]byte("12.340")))
	assert.Equal(t, Quantity(12_340), q)
	assert.Error(t, q.Scan(1.5))
}

func TestCreate_RejectsExtraPrecision(t *testing.T) {
	f := newFixture()
	req := sampleRequest()
	req.Items[0].Quantity = "0.1455"

	_, err := f.svc.Create(context.Background(), tenantID, req)
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 1)
	assert.Contains(t, vErr.Fields, "items[0].quantity")

	req = sampleRequest()
	req.Items[1].UnitCostCents = 1_000_000_000_000
	req.Items[1].Quantity = "2"
	_, err = f.svc.Create(context.Background(), tenantID, req)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "items[1].quantity")
}

func TestCreate(t *testing.T) {
	f := newFixture()
	email := "  "
	req := sampleRequest()
	req.ClientEmail = &email

	b, err := f.svc.Create(context.Background(), tenantID, req)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, b.Status)
	assert.Len(t, b.Items, 2)
	assert.Equal(t, int64(669_958), b.SubtotalCents)
	assert.Nil(t, b.ClientEmail)
	assert.Equal(t, []string{"bid.created"}, f.rec.Types())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	req := sampleRequest()
	req.DueDate = "next week"
	req.Items[1].Quantity = ""
	req.MarkupBps = -5

	_, err := f.svc.Create(context.Background(), tenantID, req)
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "due_date")
	assert.Contains(t, vErr.Fields, "items[1].quantity")
	assert.Contains(t, vErr.Fields, "markup_bps")
}

func TestSubmit_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	empty := sampleRequest()
	empty.Items = nil
	b, err := f.svc.Create(ctx, tenantID, empty)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, tenantID, b.ID)
	assert.ErrorIs(t, err, ErrNoLineItems)

	free := sampleRequest()
	free.Items = []LineItemInput{{Description: "Site visit", Quantity: "1", UnitCostCents: 0}}
	b, err = f.svc.Create(ctx, tenantID, free)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, tenantID, b.ID)
	assert.ErrorIs(t, err, ErrZeroTotal)

	b, err = f.svc.Create(ctx, tenantID, sampleRequest())
	require.NoError(t, err)
	b, err = f.svc.Submit(ctx, tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, b.Status)
	require.NotNil(t, b.SubmittedAt)

	_, err = f.svc.Update(ctx, tenantID, b.ID, UpdateBidRequest{})
	assert.ErrorIs(t, err, ErrNotDraft)
	assert.ErrorIs(t, f.svc.Delete(ctx, tenantID, b.ID), ErrNotDraft)
}

func TestUpdate_ReplacesItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b, err := f.svc.Create(ctx, tenantID, sampleRequest())
	require.NoError(t, err)

	items := []LineItemInput{{Description: "Lump sum", Quantity: "1", UnitCostCents: 100_000}}
	markup := 0
	b, err = f.svc.Update(ctx, tenantID, b.ID, UpdateBidRequest{Items: &items, MarkupBps: &markup})
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)
	assert.Equal(t, int64(100_000), b.TotalCents)
	assert.Equal(t, "Warehouse slab", b.Title)

	got, err := f.svc.Get(ctx, tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), got.TotalCents)
}

func TestTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b, err := f.svc.Create(ctx, tenantID, sampleRequest())
	require.NoError(t, err)

	_, err = f.svc.Award(ctx, tenantID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Submit(ctx, tenantID, b.ID)
	require.NoError(t, err)
	b, err = f.svc.Lose(ctx, tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLost, b.Status)
	require.NotNil(t, b.DecidedAt)

	_, err = f.svc.Withdraw(ctx, tenantID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	assert.Equal(t, []string{"bid.created", "bid.submitted", "bid.lost"}, f.rec.Types())
}

func TestConvert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b, err := f.svc.Create(ctx, tenantID, sampleRequest())
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, tenantID, b.ID, ConvertBidRequest{})
	assert.ErrorIs(t, err, ErrNotWon)

	_, err = f.svc.Submit(ctx, tenantID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Award(ctx, tenantID, b.ID)
	require.NoError(t, err)

	calls := f.runner.Calls()
	start := "2027-01-04"
	out, err := f.svc.Convert(ctx, tenantID, b.ID, ConvertBidRequest{StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.runner.Calls(), "conversion runs in one transaction")

	assert.Equal(t, StatusConverted, out.Bid.Status)
	require.NotNil(t, out.Bid.ProjectID)
	assert.Equal(t, out.Project.ID, *out.Bid.ProjectID)

	assert.Equal(t, projects.StatusPlanning, out.Project.Status)
	assert.Equal(t, "Warehouse slab", out.Project.Name)
	assert.Equal(t, "Northside Logistics", out.Project.ClientName)
	assert.Equal(t, b.TotalCents, out.Project.BudgetCents)
	assert.Equal(t, "2027-01-04", *projects.ToDTO(out.Project).StartDate)
	require.NotNil(t, out.Project.BidID)
	assert.Equal(t, b.ID, *out.Project.BidID)

	assert.Equal(t, contracts.StatusDraft, out.Contract.Status)
	assert.Equal(t, contracts.KindPrime, out.Contract.Kind)
	assert.Equal(t, "Northside Logistics", out.Contract.Counterparty)
	assert.Equal(t, b.TotalCents, out.Contract.OriginalValueCents)
	assert.Equal(t, out.Project.ID, out.Contract.ProjectID)

	assert.Len(t, f.projects.Rows, 1)
	assert.Len(t, f.contracts.Rows, 1)

	_, err = f.svc.Convert(ctx, tenantID, b.ID, ConvertBidRequest{})
	assert.ErrorIs(t, err, ErrAlreadyConverted)
	assert.Len(t, f.projects.Rows, 1)

	types := f.rec.Types()
	assert.Equal(t, "bid.converted", types[len(types)-1])
}

func TestExpireDue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	past := sampleRequest()
	past.DueDate = "2026-10-17"
	old, err := f.svc.Create(ctx, tenantID, past)
	require.NoError(t, err)

	today := sampleRequest()
	today.DueDate = "2026-10-18"
	current, err := f.svc.Create(ctx, tenantID, today)
	require.NoError(t, err)

	n, err := f.svc.ExpireDue(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusExpired, f.store.rows[old.ID].Status)
	assert.Equal(t, StatusDraft, f.store.rows[current.ID].Status)
	assert.Contains(t, f.rec.Types(), "bid.expired")
}

func TestHandler_Convert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, err := f.svc.Create(ctx, tenantID, sampleRequest())
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		tenancy.Set(c, &tenancy.Tenant{ID: tenantID, Slug: "acme", Status: tenancy.StatusActive})
		c.Next()
	})
	NewHandler(f.svc).Register(r.Group("/bids"))

	for _, step := range []string{"submit", "award"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bids/"+b.ID+"/"+step, nil))
		require.Equal(t, http.StatusOK, rr.Code, step+": "+rr.Body.String())
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bids/"+b.ID+"/convert", strings.NewReader(`{"start_date":"2027-01-04"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1 // chunked transfer, length unknown
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"start_date":"2027-01-04"`)
	assert.Contains(t, rr.Body.String(), `"status":"converted"`)
	assert.Contains(t, rr.Body.String(), `"kind":"prime"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bids/"+b.ID+"/convert", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandler_ConvertBody(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		tenancy.Set(c, &tenancy.Tenant{ID: tenantID, Slug: "acme", Status: tenancy.StatusActive})
		c.Next()
	})
	NewHandler(f.svc).Register(r.Group("/bids"))

	won := func() *Bid {
		b, err := f.svc.Create(ctx, tenantID, sampleRequest())
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, tenantID, b.ID)
		require.NoError(t, err)
		_, err = f.svc.Award(ctx, tenantID, b.ID)
		require.NoError(t, err)
		return b
	}

	// Empty streamed body converts with no start date.
	b := won()
	req := httptest.NewRequest(http.MethodPost, "/bids/"+b.ID+"/convert", strings.NewReader(""))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), `"start_date":"`)

	b = won()
	req = httptest.NewRequest(http.MethodPost, "/bids/"+b.ID+"/convert", strings.NewReader(`{"start_date":`))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, StatusWon, f.store.rows[b.ID].Status)
}

func TestRepo_ExpireDue(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	today := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE bids SET status = 'expired', updated_at = now\(\) WHERE status = 'draft' AND due_date < \$1`).
		WithArgs(today).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number"}).AddRow("b1", "bid-10000-0001"))

	got, err := NewRepo().ExpireDue(context.Background(), sqlDB, today)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bid-10000-0001", got[0].Number)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetLoadsItems(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	id := "0b7c6f3e-2a41-4a53-9d0e-5c1f8e7d6a21"
	now := time.Now()
	mock.ExpectQuery(`FROM bids WHERE id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "title", "client_name", "client_email", "due_date",
			"markup_bps", "subtotal_cents", "markup_cents", "total_cents", "status", "submitted_at", "decided_at",
			"project_id", "created_at", "updated_at"}).
			AddRow(id, "bid-10000-0001", "Slab", "Client", nil, now, 0, int64(300), int64(0), int64(300), "draft", nil, nil, nil, now, now))
	mock.ExpectQuery(`FROM bid_line_items`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "position", "description", "quantity", "unit_cost_cents", "total_cents"}).
			AddRow("i1", 1, "Concrete", "1.500", int64(200), int64(300)))

	b, err := NewRepo().Get(context.Background(), sqlDB, id)
	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, Quantity(1_500), b.Items[0].Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}
