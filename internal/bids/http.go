package bids

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type LineItemDTO struct {
	ID            string   `json:"id"`
	Position      int      `json:"position"`
	Description   string   `json:"description"`
	Quantity      Quantity `json:"quantity"`
	UnitCostCents int64    `json:"unit_cost_cents"`
	TotalCents    int64    `json:"total_cents"`
}

type BidDTO struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	Title         string        `json:"title"`
	ClientName    string        `json:"client_name"`
	ClientEmail   *string       `json:"client_email"`
	DueDate       string        `json:"due_date"`
	MarkupBps     int           `json:"markup_bps"`
	SubtotalCents int64         `json:"subtotal_cents"`
	MarkupCents   int64         `json:"markup_cents"`
	TotalCents    int64         `json:"total_cents"`
	Status        string        `json:"status"`
	SubmittedAt   *time.Time    `json:"submitted_at"`
	DecidedAt     *time.Time    `json:"decided_at"`
	ProjectID     *string       `json:"project_id"`
	Items         []LineItemDTO `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func toDTO(b *Bid) BidDTO {
	dto := BidDTO{
		ID:            b.ID,
		Number:        b.Number,
		Title:         b.Title,
		ClientName:    b.ClientName,
		ClientEmail:   b.ClientEmail,
		DueDate:       validation.FormatDate(b.DueDate),
		MarkupBps:     b.MarkupBps,
		SubtotalCents: b.SubtotalCents,
		MarkupCents:   b.MarkupCents,
		TotalCents:    b.TotalCents,
		Status:        b.Status,
		SubmittedAt:   b.SubmittedAt,
		DecidedAt:     b.DecidedAt,
		ProjectID:     b.ProjectID,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	for _, it := range b.Items {
		dto.Items = append(dto.Items, LineItemDTO(it))
	}
	return dto
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
	rg.POST("/:id/submit", h.action(h.svc.Submit))
	rg.POST("/:id/award", h.action(h.svc.Award))
	rg.POST("/:id/lose", h.action(h.svc.Lose))
	rg.POST("/:id/withdraw", h.action(h.svc.Withdraw))
	rg.POST("/:id/convert", h.convert)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	b, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "bid": toDTO(b)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c), ListFilter{Status: c.Query("status"), Search: c.Query("q")}, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	out := make([]BidDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bids": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, b, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	b, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	respond(c, b, err)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), tenancy.ID(c), c.Param("id")); err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) action(fn func(ctx context.Context, tenantID, id string) (*Bid, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := fn(c.Request.Context(), tenancy.ID(c), c.Param("id"))
		respond(c, b, err)
	}
}

func (h *Handler) convert(c *gin.Context) {
	var req ConvertBidRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			apperr.BadRequest(c, "invalid body")
			return
		}
	}
	out, err := h.svc.Convert(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ok":       true,
		"bid":      toDTO(out.Bid),
		"project":  projects.ToDTO(out.Project),
		"contract": contracts.ToDTO(out.Contract),
	})
}

func respond(c *gin.Context, b *Bid, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bid": toDTO(b)})
}
