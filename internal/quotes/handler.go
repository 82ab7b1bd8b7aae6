package quotes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/internal/directions"
	"github.com/statelyrides/chauffeur/internal/enhancements"
	"github.com/statelyrides/chauffeur/internal/rules"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/validation"
)

// Handler handles HTTP requests for quotes
type Handler struct {
	service *Service
}

// NewHandler creates a new quotes handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// LocationPayload is one trip endpoint in a quote request
type LocationPayload struct {
	Address   string  `json:"address" validate:"required,min=5,max=500"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	IsAirport bool    `json:"is_airport"`
}

// CreateQuoteRequest is the public payload for composing a quote
type CreateQuoteRequest struct {
	ServiceType    string               `json:"service_type" validate:"required"`
	Pickup         LocationPayload      `json:"pickup" validate:"required"`
	Dropoff        *LocationPayload     `json:"dropoff"`
	PickupDateTime time.Time            `json:"pickup_datetime" validate:"required"`
	ReturnDateTime *time.Time           `json:"return_datetime"`
	DurationHours  *int                 `json:"duration_hours"`
	Enhancements   enhancements.Request `json:"enhancements"`
}

func (r *CreateQuoteRequest) ToTripRequest() TripRequest {
	req := TripRequest{
		ServiceType:    rules.ServiceType(r.ServiceType),
		Pickup:         directions.Location(r.Pickup),
		PickupDateTime: r.PickupDateTime,
		ReturnDateTime: r.ReturnDateTime,
		DurationHours:  r.DurationHours,
		Enhancements:   r.Enhancements,
	}
	if r.Dropoff != nil {
		loc := directions.Location(*r.Dropoff)
		req.Dropoff = &loc
	}
	return req
}

// CreateQuote composes and stores a new quote
func (h *Handler) CreateQuote(c *gin.Context) {
	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.RespondError(c, err)
		return
	}

	quote, err := h.service.CreateQuote(c.Request.Context(), req.ToTripRequest())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.CreatedResponse(c, quote)
}

// GetQuote returns a quote, applying lazy expiry
func (h *Handler) GetQuote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid quote id")
		return
	}

	quote, err := h.service.GetQuote(c.Request.Context(), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, quote)
}

// RefreshQuote recomposes an unlocked quote from its stored inputs
func (h *Handler) RefreshQuote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid quote id")
		return
	}

	quote, err := h.service.RefreshQuote(c.Request.Context(), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, quote)
}

// LockQuote marks a quote as consumed by a booking
func (h *Handler) LockQuote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid quote id")
		return
	}

	quote, err := h.service.LockQuote(c.Request.Context(), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, quote)
}

// RegisterRoutes registers quote routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	q := rg.Group("/quotes")
	{
		q.POST("", h.CreateQuote)
		q.GET("/:id", h.GetQuote)
		q.POST("/:id/refresh", h.RefreshQuote)
		q.POST("/:id/lock", h.LockQuote)
	}
}
