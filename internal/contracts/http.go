package contracts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

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
	rg.POST("/:id/execute", h.execute)
	rg.POST("/:id/complete", h.complete)
	rg.POST("/:id/terminate", h.terminate)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	ct, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "contract": ToDTO(ct)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c),
		ListFilter{ProjectID: c.Query("project_id"), Status: c.Query("status")}, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	out := make([]ContractDTO, len(items))
	for i := range items {
		out[i] = ToDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "contracts": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	ct, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, ct, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	ct, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	h.respond(c, ct, err)
}

func (h *Handler) execute(c *gin.Context) {
	ct, err := h.svc.Execute(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, ct, err)
}

func (h *Handler) complete(c *gin.Context) {
	ct, err := h.svc.Complete(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, ct, err)
}

func (h *Handler) terminate(c *gin.Context) {
	var req TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	ct, err := h.svc.Terminate(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	h.respond(c, ct, err)
}

func (h *Handler) respond(c *gin.Context, ct *Contract, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "contract": ToDTO(ct)})
}
