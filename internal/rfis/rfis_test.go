package rfis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/db/dbtest"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/projects/projectstest"
	"github.com/groundwork-cm/groundwork-backend/internal/storage"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

const tenantID = "6f1c2a4e-8d1b-4c8e-9a55-0f7e3b2d9c11"

type memStore struct {
	mu   sync.Mutex
	rows map[string]*RFI
	seq  int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*RFI{}}
}

func (m *memStore) Insert(_ context.Context, _ db.Querier, r *RFI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = fmt.Sprintf("00000000-0000-4000-f000-%012d", m.seq)
	for _, other := range m.rows {
		if other.ProjectID == r.ProjectID && other.Number > r.Number {
			r.Number = other.Number
		}
	}
	r.Number++
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, _ db.Querier, id string) (*RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Attachments = append([]string(nil), r.Attachments...)
	return &cp, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, q db.Querier, id string) (*RFI, error) {
	return m.Get(ctx, q, id)
}

func (m *memStore) List(_ context.Context, _ db.Querier, f ListFilter, _ paging.Params) ([]RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RFI
	for _, r := range m.rows {
		if f.ProjectID != "" && r.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Overdue && !r.Overdue(f.Today) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) OverdueOpen(ctx context.Context, q db.Querier, today time.Time) ([]RFI, error) {
	return m.List(ctx, q, ListFilter{Overdue: true, Today: today}, paging.Params{})
}

func (m *memStore) Save(_ context.Context, _ db.Querier, r *RFI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

type fakeFiles struct {
	puts []string
}

func (f *fakeFiles) PresignPut(_ context.Context, key, _ string) (*storage.PresignedURL, error) {
	f.puts = append(f.puts, key)
	return &storage.PresignedURL{URL: "https://files.example/" + key + "?sig=put", Method: http.MethodPut}, nil
}

func (f *fakeFiles) PresignGet(_ context.Context, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://files.example/" + key + "?sig=get", Method: http.MethodGet}, nil
}

type fixture struct {
	svc     *Service
	store   *memStore
	files   *fakeFiles
	events  *events.Recorder
	project *projects.Project
	others  *projectstest.Store
}

func newFixture() *fixture {
	prj := projectstest.NewStore()
	f := &fixture{store: newMemStore(), files: &fakeFiles{}, events: &events.Recorder{}, others: prj}
	runner := &dbtest.Runner{}
	f.svc = NewService(runner, f.store, projects.NewService(runner, prj, nil), f.files, f.events)
	f.svc.now = func() time.Time { return time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC) }
	f.project = prj.Put(projects.Project{Name: "Depot", Status: projects.StatusActive})
	return f
}

func strPtr(s string) *string { return &s }

func (f *fixture) create(t *testing.T, due *string) *RFI {
	t.Helper()
	r, err := f.svc.Create(context.Background(), tenantID, "pm-1", CreateRFIRequest{
		ProjectID: f.project.ID,
		Subject:   "Footing depth at grid C4",
		Question:  "Drawings S-101 and S-201 disagree on the footing depth. Which governs?",
		DueDate:   due,
	})
	require.NoError(t, err)
	return r
}

func TestCreate_NumbersPerProject(t *testing.T) {
	f := newFixture()
	a := f.create(t, nil)
	b := f.create(t, nil)
	assert.Equal(t, 1, a.Number)
	assert.Equal(t, 2, b.Number)
	assert.Equal(t, PriorityNormal, a.Priority)
	assert.Equal(t, StatusOpen, a.Status)
	assert.Equal(t, "pm-1", a.CreatedBy)

	other := f.others.Put(projects.Project{Name: "Pier", Status: projects.StatusPlanning})
	c, err := f.svc.Create(context.Background(), tenantID, "pm-1", CreateRFIRequest{ProjectID: other.ID, Subject: "s", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Number)
}

func TestCreate_ClosedProject(t *testing.T) {
	f := newFixture()
	done := f.others.Put(projects.Project{Name: "Old", Status: projects.StatusCompleted})
	_, err := f.svc.Create(context.Background(), tenantID, "pm-1", CreateRFIRequest{ProjectID: done.ID, Subject: "s", Question: "q"})
	assert.ErrorIs(t, err, projects.ErrClosed)

	_, err = f.svc.Create(context.Background(), tenantID, "pm-1", CreateRFIRequest{ProjectID: f.project.ID, Subject: "s", Question: "q", Priority: "asap"})
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "priority")
}

func TestWorkflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, strPtr("2026-10-25"))

	_, err := f.svc.Close(ctx, tenantID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	r, err = f.svc.Answer(ctx, tenantID, "architect-1", r.ID, AnswerRequest{Answer: "S-201 governs; 1.2 m."})
	require.NoError(t, err)
	assert.Equal(t, StatusAnswered, r.Status)
	assert.Equal(t, "architect-1", *r.AnsweredBy)

	_, err = f.svc.Update(ctx, tenantID, r.ID, UpdateRFIRequest{Subject: strPtr("new")})
	assert.ErrorIs(t, err, ErrNotOpen)

	r, err = f.svc.Close(ctx, tenantID, r.ID)
	require.NoError(t, err)
	require.NotNil(t, r.ClosedAt)

	r, err = f.svc.Reopen(ctx, tenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, r.Status)
	assert.Nil(t, r.Answer)
	assert.Nil(t, r.ClosedAt)

	r, err = f.svc.Update(ctx, tenantID, r.ID, UpdateRFIRequest{Priority: strPtr(PriorityUrgent), DueDate: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, r.Priority)
	assert.Nil(t, r.DueDate)

	assert.Equal(t, []string{"rfi.created", "rfi.answered", "rfi.closed", "rfi.reopened"}, f.events.Types())
}

func TestOverdue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	late := f.create(t, strPtr("2026-10-17"))
	f.create(t, strPtr("2026-10-18"))
	f.create(t, nil)
	answered := f.create(t, strPtr("2026-10-01"))
	_, err := f.svc.Answer(ctx, tenantID, "architect-1", answered.ID, AnswerRequest{Answer: "done"})
	require.NoError(t, err)

	today := f.svc.Today()
	assert.True(t, late.Overdue(today))

	list, err := f.svc.List(ctx, tenantID, ListFilter{Overdue: true}, paging.Params{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, late.ID, list[0].ID)

	n, err := f.svc.SweepOverdue(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "rfi.overdue", f.events.Types()[len(f.events.Types())-1])
}

func TestAttachments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, nil)

	up, err := f.svc.PresignAttachment(ctx, tenantID, r.ID, PresignRequest{FileName: "../Site photo #3.JPG", ContentType: "image/jpeg"})
	require.NoError(t, err)
	prefix := "tenants/" + tenantID + "/rfis/" + r.ID + "/"
	assert.True(t, strings.HasPrefix(up.Key, prefix), up.Key)
	assert.True(t, strings.HasSuffix(up.Key, "-Site-photo-3.JPG"), up.Key)
	assert.Equal(t, []string{up.Key}, f.files.puts)

	_, err = f.svc.AttachFile(ctx, tenantID, r.ID, AttachRequest{Key: "tenants/other/rfis/" + r.ID + "/x.pdf"})
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	_, err = f.svc.AttachFile(ctx, tenantID, r.ID, AttachRequest{Key: prefix + "nested/x.pdf"})
	require.ErrorAs(t, err, &vErr)

	r, err = f.svc.AttachFile(ctx, tenantID, r.ID, AttachRequest{Key: up.Key})
	require.NoError(t, err)
	r, err = f.svc.AttachFile(ctx, tenantID, r.ID, AttachRequest{Key: up.Key})
	require.NoError(t, err)
	assert.Equal(t, []string{up.Key}, r.Attachments)

	u, err := f.svc.AttachmentURL(ctx, tenantID, r.ID, up.Key)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, u.Method)

	_, err = f.svc.AttachmentURL(ctx, tenantID, r.ID, prefix+"never-attached.pdf")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
}

func TestAttachments_StorageDisabled(t *testing.T) {
	f := newFixture()
	f.svc.files = storage.Disabled{}
	r := f.create(t, nil)
	_, err := f.svc.PresignAttachment(context.Background(), tenantID, r.ID, PresignRequest{FileName: "plan.pdf"})
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "plan.pdf", cleanFileName("plan.pdf"))
	assert.Equal(t, "b.txt", cleanFileName(`C:\a\b.txt`))
	assert.Equal(t, "", cleanFileName("..."))
	assert.Equal(t, "a-b.png", cleanFileName("a  b.png"))
}

func TestHandler(t *testing.T) {
	f := newFixture()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		tenancy.Set(c, &tenancy.Tenant{ID: tenantID, Slug: "acme", Status: tenancy.StatusActive})
		c.Next()
	})
	NewHandler(f.svc).Register(r.Group("/rfis"))

	body := `{"project_id":"` + f.project.ID + `","subject":"Door hardware","question":"Which lever set?","due_date":"2026-10-01"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rfis", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"overdue":true`)
	assert.Contains(t, rr.Body.String(), `"attachments":[]`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rfis?overdue=yes", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rfis?overdue=true&project_id="+f.project.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"number":1`)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/rfis/00000000-0000-4000-f000-000000000001/attachments/presign",
		strings.NewReader(`{"file_name":"detail.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"method":"PUT"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rfis/00000000-0000-4000-f000-000000000001/attachments/url", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

var rfiCols = []string{"id", "project_id", "number", "subject", "question", "priority", "assigned_to", "due_date",
	"status", "answer", "answered_by", "answered_at", "closed_at", "attachments", "created_by", "created_at", "updated_at"}

func TestRepo_GetScansAttachments(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	id := "0b7c6f3e-2a41-4a53-9d0e-5c1f8e7d6a21"
	now := time.Now()
	mock.ExpectQuery(`FROM rfis WHERE id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(rfiCols).AddRow(id, "p1", 3, "s", "q", "high", nil, nil, "open", nil, nil,
			nil, nil, []byte(`{tenants/t/rfis/r/a.pdf,tenants/t/rfis/r/b.png}`), "pm-1", now, now))

	got, err := NewRepo().Get(context.Background(), sqlDB, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Number)
	assert.Equal(t, []string{"tenants/t/rfis/r/a.pdf", "tenants/t/rfis/r/b.png"}, got.Attachments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_InsertNumbersFromMax(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO rfis .*\s+SELECT \$1, COALESCE\(MAX\(number\), 0\) \+ 1`).
		WillReturnRows(sqlmock.NewRows(rfiCols).AddRow("r1", "p1", 1, "s", "q", "normal", nil, nil, "open", nil, nil,
			nil, nil, []byte(`{}`), "pm-1", now, now))

	r := &RFI{ProjectID: "p1", Subject: "s", Question: "q", Priority: "normal", Status: "open", CreatedBy: "pm-1"}
	require.NoError(t, NewRepo().Insert(context.Background(), sqlDB, r))
	assert.Equal(t, 1, r.Number)
	assert.Empty(t, r.Attachments)
	require.NoError(t, mock.ExpectationsWereMet())
}
