package calendar

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Handler handles HTTP requests for the availability calendar
type Handler struct {
	service *Service
}

// NewHandler creates a new calendar handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CheckOpen reports whether service operates at a given instant
func (h *Handler) CheckOpen(c *gin.Context) {
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed
	}

	status, err := h.service.IsOpen(c.Request.Context(), at)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, status)
}

// BusinessHoursRequest is the admin payload for one weekday schedule
type BusinessHoursRequest struct {
	DayOfWeek int    `json:"day_of_week" binding:"min=0,max=6"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
	Timezone  string `json:"timezone"`
}

// SaveBusinessHours stores the schedule for one weekday
func (h *Handler) SaveBusinessHours(c *gin.Context) {
	var req BusinessHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	bh := &BusinessHours{
		DayOfWeek: req.DayOfWeek,
		OpenTime:  req.OpenTime,
		CloseTime: req.CloseTime,
		IsClosed:  req.IsClosed,
		Timezone:  req.Timezone,
	}
	if err := h.service.SaveBusinessHours(c.Request.Context(), bh); err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, bh)
}

// ListBusinessHours returns all stored weekday schedules
func (h *Handler) ListBusinessHours(c *gin.Context) {
	hours, err := h.service.ListBusinessHours(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, hours)
}

// HolidayRequest is the admin payload for a holiday
type HolidayRequest struct {
	Name         string   `json:"name" binding:"required"`
	Date         string   `json:"date" binding:"required"` // YYYY-MM-DD
	IsClosed     bool     `json:"is_closed"`
	OpenTime     *string  `json:"open_time"`
	CloseTime    *string  `json:"close_time"`
	SurchargePct *float64 `json:"surcharge_percentage"`
}

func (r *HolidayRequest) toModel() (*Holiday, error) {
	date, err := time.Parse(dateKeyLayout, r.Date)
	if err != nil {
		return nil, common.NewValidationError("date must be in YYYY-MM-DD form")
	}
	return &Holiday{
		Name:         r.Name,
		Date:         date,
		IsClosed:     r.IsClosed,
		OpenTime:     r.OpenTime,
		CloseTime:    r.CloseTime,
		SurchargePct: r.SurchargePct,
	}, nil
}

// CreateHoliday stores a new holiday
func (h *Handler) CreateHoliday(c *gin.Context) {
	var req HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	holiday, err := req.toModel()
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if err := h.service.CreateHoliday(c.Request.Context(), holiday); err != nil {
		common.RespondError(c, err)
		return
	}

	common.CreatedResponse(c, holiday)
}

// UpdateHoliday rewrites an existing holiday
func (h *Handler) UpdateHoliday(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid holiday id")
		return
	}

	var req HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	holiday, convErr := req.toModel()
	if convErr != nil {
		common.RespondError(c, convErr)
		return
	}
	holiday.ID = id
	if err := h.service.UpdateHoliday(c.Request.Context(), holiday); err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, holiday)
}

// DeleteHoliday removes a holiday
func (h *Handler) DeleteHoliday(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid holiday id")
		return
	}

	if err := h.service.DeleteHoliday(c.Request.Context(), id); err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"deleted": true})
}

// ListHolidays returns holidays within an optional date range
func (h *Handler) ListHolidays(c *gin.Context) {
	from := time.Now().UTC().AddDate(0, 0, -1)
	to := from.AddDate(1, 0, 0)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(dateKeyLayout, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "from must be in YYYY-MM-DD form")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(dateKeyLayout, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "to must be in YYYY-MM-DD form")
			return
		}
		to = parsed
	}

	holidays, err := h.service.ListHolidays(c.Request.Context(), from, to)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, holidays)
}

// RegisterRoutes registers public calendar routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	cal := rg.Group("/calendar")
	{
		cal.GET("/open", h.CheckOpen)
	}
}

// RegisterAdminRoutes registers admin calendar routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	cal := rg.Group("/calendar")
	{
		cal.GET("/business-hours", h.ListBusinessHours)
		cal.PUT("/business-hours", h.SaveBusinessHours)
		cal.GET("/holidays", h.ListHolidays)
		cal.POST("/holidays", h.CreateHoliday)
		cal.PUT("/holidays/:id", h.UpdateHoliday)
		cal.DELETE("/holidays/:id", h.DeleteHoliday)
	}
}
