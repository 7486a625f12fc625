package employees

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type EmployeeDTO struct {
	ID                string    `json:"id"`
	EmployeeNumber    string    `json:"employee_number"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             *string   `json:"email"`
	Phone             *string   `json:"phone"`
	JobTitle          string    `json:"job_title"`
	Trade             *string   `json:"trade"`
	PayType           string    `json:"pay_type"`
	HourlyRateCents   int64     `json:"hourly_rate_cents"`
	AnnualSalaryCents int64     `json:"annual_salary_cents"`
	HireDate          string    `json:"hire_date"`
	TerminationDate   *string   `json:"termination_date"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toDTO(e *Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                e.ID,
		EmployeeNumber:    e.EmployeeNumber,
		FirstName:         e.FirstName,
		LastName:          e.LastName,
		Email:             e.Email,
		Phone:             e.Phone,
		JobTitle:          e.JobTitle,
		Trade:             e.Trade,
		PayType:           e.PayType,
		HourlyRateCents:   e.HourlyRateCents,
		AnnualSalaryCents: e.AnnualSalaryCents,
		HireDate:          validation.FormatDate(e.HireDate),
		TerminationDate:   validation.FormatOptionalDate(e.TerminationDate),
		Status:            e.Status,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
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
	rg.POST("/:id/terminate", h.terminate)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Create(c.Request.Context(), tenancy.ID(c), req)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "employee": toDTO(e)})
}

func (h *Handler) list(c *gin.Context) {
	page, err := paging.FromQuery(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}
	f := ListFilter{Status: c.Query("status"), Trade: c.Query("trade"), Search: c.Query("q")}
	items, err := h.svc.List(c.Request.Context(), tenancy.ID(c), f, page)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	out := make([]EmployeeDTO, len(items))
	for i := range items {
		out[i] = toDTO(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "employees": out, "next_offset": page.NextOffset(len(items))})
}

func (h *Handler) get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), tenancy.ID(c), c.Param("id"))
	respond(c, e, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Update(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	respond(c, e, err)
}

func (h *Handler) terminate(c *gin.Context) {
	var req TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, "invalid body")
		return
	}
	e, err := h.svc.Terminate(c.Request.Context(), tenancy.ID(c), c.Param("id"), req)
	respond(c, e, err)
}

func respond(c *gin.Context, e *Employee, err error) {
	if err != nil {
		apperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "employee": toDTO(e)})
}
