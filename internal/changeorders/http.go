package changeorders

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

type ChangeOrderDTO struct {
	ID           string     `json:"id"`
	ContractID   string     `json:"contract_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AmountCents  int64      `json:"amount_cents"`
	ScheduleDays int        `json:"schedule_days"`
	Status       string     `json:"status"`
	RequestedBy  string     `json:"requested_by"`
	DecidedBy    *string    `json:"decided_by"`
	DecidedAt    *time.Time `json:"decided_at"`
	Reason       *string    `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toDTO(co *ChangeOrder) ChangeOrderDTO {
	return ChangeOrderDTO{
		ID:           co.ID,
		ContractID:   co.ContractID,
		Number:       co.Number,
		Title:        co.Title,
		Description:  co.Description,
		AmountCents:  co.AmountCents,
		ScheduleDays: co.ScheduleDays,
		Status:       co.Status,
		RequestedBy:  co.RequestedBy,
		DecidedBy:    co.DecidedBy,
		DecidedAt:    co.DecidedAt,
		Reason:       co.Reason,
		CreatedAt:    co.CreatedAt,
		UpdatedAt:    co.UpdatedAt,
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts routes on the /api/v1 group. Creation and listing hang off
// the contract; everything else addresses the change order directly.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/contracts/:id/change-orders", h.create)
	api.GET("/contracts/:id/change-orders", h.list)

	rg := api.Group("/change-orders")
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.update)
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/reject", h.reject)
	rg.POST("/:id/void", h.void)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateChangeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	co, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "change_order": toDTO(co)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c),
		ListFilter{ContractID: c.Param("id"), Status: c.Query("status")}, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	out := make([]ChangeOrderDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "change_orders": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	co, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, co, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateChangeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	co, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	respond(c, co, err)
}

func (h *Handler) approve(c *gin.Context) {
	co, err := h.svc.Approve(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"))
	respond(c, co, err)
}

func (h *Handler) reject(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	co, err := h.svc.Reject(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"), req)
	respond(c, co, err)
}

func (h *Handler) void(c *gin.Context) {
	var req DecisionRequest
	// The body is optional for voids.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.BadRequest(c, "invalid body")
			return
		}
	}
	co, err := h.svc.Void(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"), req)
	respond(c, co, err)
}

func respond(c *gin.Context, co *ChangeOrder, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "change_order": toDTO(co)})
}
