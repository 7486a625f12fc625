package timetracking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type EntryDTO struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	ProjectID       string     `json:"project_id"`
	WorkDate        string     `json:"work_date"`
	Minutes         int        `json:"minutes"`
	CostCode        *string    `json:"cost_code"`
	Notes           *string    `json:"notes"`
	Status          string     `json:"status"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	DecidedBy       *string    `json:"decided_by"`
	DecidedAt       *time.Time `json:"decided_at"`
	RejectionReason *string    `json:"rejection_reason"`
	PayrollBatchID  *string    `json:"payroll_batch_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toDTO(e *Entry) EntryDTO {
	return EntryDTO{
		ID:              e.ID,
		EmployeeID:      e.EmployeeID,
		ProjectID:       e.ProjectID,
		WorkDate:        validation.FormatDate(e.WorkDate),
		Minutes:         e.Minutes,
		CostCode:        e.CostCode,
		Notes:           e.Notes,
		Status:          e.Status,
		SubmittedAt:     e.SubmittedAt,
		DecidedBy:       e.DecidedBy,
		DecidedAt:       e.DecidedAt,
		RejectionReason: e.RejectionReason,
		PayrollBatchID:  e.PayrollBatchID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.update)
	rg.DELETE("/:id", h.delete)
	rg.POST("/:id/submit", h.submit)
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/reject", h.reject)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "time_entry": toDTO(e)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	f := ListFilter{
		EmployeeID: c.Query("employee_id"),
		ProjectID:  c.Query("project_id"),
		Status:     c.Query("status"),
	}
	var vErr *apperr.ValidationError
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.Query(name)
		d, err := validation.ParseOptionalDate(&v)
		if err != nil {
			vErr = vErr.Add(name, "must be a date (YYYY-MM-DD)")
			continue
		}
		*dst = d
	}
	if err := vErr.OrNil(); err != nil {
		apperr.Write(c, err)
		return
	}

	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c), f, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	out := make([]EntryDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time_entries": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, e, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	respond(c, e, err)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), tenancy.ID(c), c.Param("id")); err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) submit(c *gin.Context) {
	e, err := h.svc.Submit(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, e, err)
}

func (h *Handler) approve(c *gin.Context) {
	e, err := h.svc.Approve(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"))
	respond(c, e, err)
}

func (h *Handler) reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Reject(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"), req)
	respond(c, e, err)
}

func respond(c *gin.Context, e *Entry, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time_entry": toDTO(e)})
}
