package rfis

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type RFIDTO struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Number      int        `json:"number"`
	Subject     string     `json:"subject"`
	Question    string     `json:"question"`
	Priority    string     `json:"priority"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *string    `json:"due_date"`
	Status      string     `json:"status"`
	Overdue     bool       `json:"overdue"`
	Answer      *string    `json:"answer"`
	AnsweredBy  *string    `json:"answered_by"`
	AnsweredAt  *time.Time `json:"answered_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	Attachments []string   `json:"attachments"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toDTO(r *RFI, today time.Time) RFIDTO {
	attachments := r.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return RFIDTO{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Number:      r.Number,
		Subject:     r.Subject,
		Question:    r.Question,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
		DueDate:     validation.FormatOptionalDate(r.DueDate),
		Status:      r.Status,
		Overdue:     r.Overdue(today),
		Answer:      r.Answer,
		AnsweredBy:  r.AnsweredBy,
		AnsweredAt:  r.AnsweredAt,
		ClosedAt:    r.ClosedAt,
		Attachments: attachments,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
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
	rg.POST("/:id/answer", h.answer)
	rg.POST("/:id/close", h.close)
	rg.POST("/:id/reopen", h.reopen)
	rg.POST("/:id/attachments/presign", h.presign)
	rg.POST("/:id/attachments", h.attach)
	rg.GET("/:id/attachments/url", h.attachmentURL)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRFIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	r, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), auth.UserID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "rfi": toDTO(r, h.svc.Today())})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	f := ListFilter{ProjectID: c.Query("project_id"), Status: c.Query("status")}
	if v := c.Query("overdue"); v != "" {
		f.Overdue, err = strconv.ParseBool(v)
		if err != nil {
			apperr.Write(c, apperr.Invalid("overdue", "must be true or false"))
			return
		}
	}

	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c), f, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	today := h.svc.Today()
	out := make([]RFIDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i], today)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rfis": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	r, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, r, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateRFIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	r, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	h.respond(c, r, err)
}

func (h *Handler) answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	r, err := h.svc.Answer(c.Request.Context(), tenancy.ID(c), auth.UserID(c), c.Param("id"), req)
	h.respond(c, r, err)
}

func (h *Handler) close(c *gin.Context) {
	r, err := h.svc.Close(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, r, err)
}

func (h *Handler) reopen(c *gin.Context) {
	r, err := h.svc.Reopen(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	h.respond(c, r, err)
}

func (h *Handler) presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	up, err := h.svc.PresignAttachment(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "key": up.Key, "upload": up.URL})
}

func (h *Handler) attach(c *gin.Context) {
	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	r, err := h.svc.AttachFile(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	h.respond(c, r, err)
}

func (h *Handler) attachmentURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		apperr.Write(c, apperr.Invalid("key", "is required"))
		return
	}
	u, err := h.svc.AttachmentURL(c.Request.Context(), tenancy.ID(c), c.Param("id"), key)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "download": u})
}

func (h *Handler) respond(c *gin.Context, r *RFI, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rfi": toDTO(r, h.svc.Today())})
}
