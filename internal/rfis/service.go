package rfis

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/storage"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

var (
	ErrAttachmentNotFound = apperr.NotFound("attachment not found")
	unsafeName            = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

type store interface {
	Insert(ctx context.Context, q db.Querier, r *RFI) error
	Get(ctx context.Context, q db.Querier, id string) (*RFI, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*RFI, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]RFI, error)
	OverdueOpen(ctx context.Context, q db.Querier, today time.Time) ([]RFI, error)
	Save(ctx context.Context, q db.Querier, r *RFI) error
}

type projectLocker interface {
	GetWith(ctx context.Context, q db.Querier, id string) (*projects.Project, error)
}

type Service struct {
	tx       db.TxRunner
	store    store
	projects projectLocker
	files    storage.Presigner
	events   events.Publisher
	now      func() time.Time
}

func NewService(tx db.TxRunner, s store, p projectLocker, files storage.Presigner, pub events.Publisher) *Service {
	if files == nil {
		files = storage.Disabled{}
	}
	return &Service{tx: tx, store: s, projects: p, files: files, events: pub, now: time.Now}
}

type CreateRFIRequest struct {
	ProjectID  string  `json:"project_id" validate:"required,uuid"`
	Subject    string  `json:"subject" validate:"required,max=200"`
	Question   string  `json:"question" validate:"required,max=8000"`
	Priority   string  `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	AssignedTo *string `json:"assigned_to" validate:"omitempty,max=200"`
	DueDate    *string `json:"due_date" validate:"omitempty,date"`
}

type UpdateRFIRequest struct {
	Subject    *string `json:"subject" validate:"omitempty,max=200"`
	Question   *string `json:"question" validate:"omitempty,max=8000"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	AssignedTo *string `json:"assigned_to" validate:"omitempty,max=200"`
	DueDate    *string `json:"due_date" validate:"omitempty,date"`
}

type AnswerRequest struct {
	Answer string `json:"answer" validate:"required,max=8000"`
}

type PresignRequest struct {
	FileName    string `json:"file_name" validate:"required,max=200"`
	ContentType string `json:"content_type" validate:"max=100"`
}

type AttachRequest struct {
	Key string `json:"key" validate:"required,max=512"`
}

// Upload is a presigned PUT plus the key to attach once it succeeds.
type Upload struct {
	Key string
	URL *storage.PresignedURL
}

func (s *Service) Create(ctx context.Context, tenantID, actor string, req CreateRFIRequest) (*RFI, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Question = strings.TrimSpace(req.Question)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	due, _ := validation.ParseOptionalDate(req.DueDate)
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}

	r := &RFI{
		ProjectID:  req.ProjectID,
		Subject:    req.Subject,
		Question:   req.Question,
		Priority:   req.Priority,
		AssignedTo: trimmed(req.AssignedTo),
		DueDate:    due,
		Status:     StatusOpen,
		CreatedBy:  actor,
	}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		p, err := s.projects.GetWith(ctx, q, r.ProjectID)
		if err != nil {
			return err
		}
		if !p.Open() {
			return projects.ErrClosed
		}
		return s.store.Insert(ctx, q, r)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"project_id": r.ProjectID, "number": r.Number,
	}).Info("rfi created")
	s.publish(ctx, tenantID, "rfi.created", r)
	return r, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*RFI, error) {
	var r *RFI
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		r, err = s.store.Get(ctx, q, id)
		return err
	})
	return r, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]RFI, error) {
	var vErr *apperr.ValidationError
	if f.Status != "" && !validStatus(f.Status) {
		vErr = vErr.Add("status", "unknown rfi status")
	}
	if f.ProjectID != "" && !db.ValidID(f.ProjectID) {
		vErr = vErr.Add("project_id", "must be a UUID")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}
	f.Today = s.Today()

	var out []RFI
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

// Today is the date overdue is measured against.
func (s *Service) Today() time.Time {
	return validation.Truncate(s.now())
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateRFIRequest) (*RFI, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var vErr *apperr.ValidationError
	if req.Subject != nil && strings.TrimSpace(*req.Subject) == "" {
		vErr = vErr.Add("subject", "is required")
	}
	if req.Question != nil && strings.TrimSpace(*req.Question) == "" {
		vErr = vErr.Add("question", "is required")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	var r *RFI
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		r, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if r.Status != StatusOpen {
			return ErrNotOpen
		}
		if req.Subject != nil {
			r.Subject = strings.TrimSpace(*req.Subject)
		}
		if req.Question != nil {
			r.Question = strings.TrimSpace(*req.Question)
		}
		if req.Priority != nil {
			r.Priority = *req.Priority
		}
		if req.AssignedTo != nil {
			r.AssignedTo = trimmed(req.AssignedTo)
		}
		if req.DueDate != nil {
			r.DueDate, _ = validation.ParseOptionalDate(req.DueDate)
		}
		return s.store.Save(ctx, q, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Answer(ctx context.Context, tenantID, actor, id string, req AnswerRequest) (*RFI, error) {
	req.Answer = strings.TrimSpace(req.Answer)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, StatusAnswered, func(r *RFI) {
		now := s.now().UTC()
		r.Answer = &req.Answer
		r.AnsweredBy = &actor
		r.AnsweredAt = &now
	})
}

func (s *Service) Close(ctx context.Context, tenantID, id string) (*RFI, error) {
	return s.transition(ctx, tenantID, id, StatusClosed, func(r *RFI) {
		now := s.now().UTC()
		r.ClosedAt = &now
	})
}

// Reopen sends an answered or closed RFI back for a new answer.
func (s *Service) Reopen(ctx context.Context, tenantID, id string) (*RFI, error) {
	return s.transition(ctx, tenantID, id, StatusOpen, func(r *RFI) {
		r.Answer = nil
		r.AnsweredBy = nil
		r.AnsweredAt = nil
		r.ClosedAt = nil
	})
}

func (s *Service) transition(ctx context.Context, tenantID, id, to string, apply func(r *RFI)) (*RFI, error) {
	var (
		r    *RFI
		from string
	)
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		r, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		from = r.Status
		if !CanTransition(r.Status, to) {
			return apperr.InvalidState(fmt.Sprintf("cannot move rfi from %s to %s", r.Status, to))
		}
		apply(r)
		r.Status = to
		return s.store.Save(ctx, q, r)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"rfi": r.ID, "from": from, "to": to,
	}).Info("rfi status changed")
	typ := "rfi." + to
	if to == StatusOpen {
		typ = "rfi.reopened"
	}
	s.publish(ctx, tenantID, typ, r)
	return r, nil
}

// KeyPrefix is where every object of one RFI lives.
func KeyPrefix(tenantID, rfiID string) string {
	return "tenants/" + tenantID + "/rfis/" + rfiID + "/"
}

// PresignAttachment returns a PUT URL under the RFI's prefix. The file is not
// attached until the client calls AttachFile with the returned key.
func (s *Service) PresignAttachment(ctx context.Context, tenantID, id string, req PresignRequest) (*Upload, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	name := cleanFileName(req.FileName)
	if name == "" {
		return nil, apperr.Invalid("file_name", "must contain letters or digits")
	}

	r, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusClosed {
		return nil, apperr.InvalidState("rfi is closed")
	}

	key := KeyPrefix(tenantID, r.ID) + uuid.NewString() + "-" + name
	u, err := s.files.PresignPut(ctx, key, req.ContentType)
	if err != nil {
		return nil, err
	}
	return &Upload{Key: key, URL: u}, nil
}

func (s *Service) AttachFile(ctx context.Context, tenantID, id string, req AttachRequest) (*RFI, error) {
	req.Key = strings.TrimSpace(req.Key)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var r *RFI
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		r, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		prefix := KeyPrefix(tenantID, r.ID)
		rest := strings.TrimPrefix(req.Key, prefix)
		if rest == req.Key || rest == "" || strings.Contains(rest, "/") {
			return apperr.Invalid("key", "must be a key issued for this rfi")
		}
		for _, k := range r.Attachments {
			if k == req.Key {
				return nil
			}
		}
		r.Attachments = append(r.Attachments, req.Key)
		return s.store.Save(ctx, q, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// AttachmentURL presigns a download for a key already attached to the RFI.
func (s *Service) AttachmentURL(ctx context.Context, tenantID, id, key string) (*storage.PresignedURL, error) {
	r, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	for _, k := range r.Attachments {
		if k == key {
			return s.files.PresignGet(ctx, key)
		}
	}
	return nil, ErrAttachmentNotFound
}

// SweepOverdue publishes rfi.overdue for every open RFI past its due date.
func (s *Service) SweepOverdue(ctx context.Context, tenantID string) (int, error) {
	today := s.Today()
	var due []RFI
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		due, err = s.store.OverdueOpen(ctx, q, today)
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range due {
		s.publish(ctx, tenantID, "rfi.overdue", &due[i])
	}
	if len(due) > 0 {
		logging.FromContext(ctx).WithField("count", len(due)).Info("overdue rfis flagged")
	}
	return len(due), nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, r *RFI) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"project_id": r.ProjectID,
		"number":     r.Number,
		"priority":   r.Priority,
	}
	if r.DueDate != nil {
		data["due_date"] = validation.FormatDate(*r.DueDate)
	}
	s.events.Publish(ctx, events.Event{Type: typ, TenantID: tenantID, EntityID: r.ID, Data: data})
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeName.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > 120 {
		name = name[len(name)-120:]
	}
	return name
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
