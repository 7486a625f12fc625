package payroll

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type ItemDTO struct {
	ID               string `json:"id"`
	EmployeeID       string `json:"employee_id"`
	PayType          string `json:"pay_type"`
	RegularMinutes   int    `json:"regular_minutes"`
	OvertimeMinutes  int    `json:"overtime_minutes"`
	RegularPayCents  int64  `json:"regular_pay_cents"`
	OvertimePayCents int64  `json:"overtime_pay_cents"`
	SalaryPayCents   int64  `json:"salary_pay_cents"`
	GrossCents       int64  `json:"gross_cents"`
}

type BatchDTO struct {
	ID            string     `json:"id"`
	PeriodStart   string     `json:"period_start"`
	PeriodEnd     string     `json:"period_end"`
	PayDate       string     `json:"pay_date"`
	Status        string     `json:"status"`
	GrossCents    int64      `json:"gross_cents"`
	EmployeeCount int        `json:"employee_count"`
	EntryCount    int        `json:"entry_count"`
	ApprovedBy    *string    `json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`
	PaidAt        *time.Time `json:"paid_at"`
	Items         []ItemDTO  `json:"items,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toDTO(b *Batch) BatchDTO {
	out := BatchDTO{
		ID:            b.ID,
		PeriodStart:   validation.FormatDate(b.PeriodStart),
		PeriodEnd:     validation.FormatDate(b.PeriodEnd),
		PayDate:       validation.FormatDate(b.PayDate),
		Status:        b.Status,
		GrossCents:    b.GrossCents,
		EmployeeCount: b.EmployeeCount,
		EntryCount:    b.EntryCount,
		ApprovedBy:    b.ApprovedBy,
		ApprovedAt:    b.ApprovedAt,
		PaidAt:        b.PaidAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	for _, it := range b.Items {
		out.Items = append(out.Items, ItemDTO(it))
	}
	return out
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
	rg.POST("/:id/calculate", h.action(h.svc.Calculate))
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/pay", h.action(h.svc.Pay))
	rg.POST("/:id/void", h.action(h.svc.Void))
}

func (h *Handler) create(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	b, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "payroll_batch": toDTO(b)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c), ListFilter{Status: c.Query("status")}, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	out := make([]BatchDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "payroll_batches": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, b, err)
}

func (h *Handler) approve(c *gin.Context) {
	b, err := h.svc.Approve(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"))
	respond(c, b, err)
}

func (h *Handler) action(fn func(ctx context.Context, tenantID, id string) (*Batch, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := fn(c.Request.Context(), tenancy.ID(c), c.Param("id"))
		respond(c, b, err)
	}
}

func respond(c *gin.Context, b *Batch, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "payroll_batch": toDTO(b)})
}
