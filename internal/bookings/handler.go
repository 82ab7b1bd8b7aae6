package bookings

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/internal/quotes"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/validation"
)

// Handler handles HTTP requests for bookings
type Handler struct {
	service *Service
}

// NewHandler creates a new bookings handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PassengerPayload is the contact details on a booking
type PassengerPayload struct {
	Name  string `json:"name" validate:"required,min=2,max=200"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email" validate:"required,email"`
}

// CreateBookingRequest opens a booking against a quote
type CreateBookingRequest struct {
	QuoteID     uuid.UUID        `json:"quote_id" validate:"required"`
	Passenger   PassengerPayload `json:"passenger" validate:"required"`
	GratuityPct float64          `json:"gratuity_pct" validate:"min=0,max=100"`
}

// ModifyBookingRequest re-prices a booking from changed trip inputs
type ModifyBookingRequest struct {
	Trip        quotes.CreateQuoteRequest `json:"trip" validate:"required"`
	GratuityPct *float64                  `json:"gratuity_pct" validate:"omitempty,min=0,max=100"`
	Note        string                    `json:"note" validate:"max=500"`
}

// CancelBookingRequest carries the cancellation reason
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok
}

// CreateBooking locks the quote and opens a PENDING booking
func (h *Handler) CreateBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.RespondError(c, err)
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), CreateParams{
		UserID:      userID,
		QuoteID:     req.QuoteID,
		Passenger:   Passenger(req.Passenger),
		GratuityPct: req.GratuityPct,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.CreatedResponse(c, booking)
}

// GetBooking returns one of the caller's bookings
func (h *Handler) GetBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := h.service.GetBooking(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, booking)
}

// ListBookings returns a page of the caller's bookings
func (h *Handler) ListBookings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.service.ListBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, bookings)
}

// ConfirmBooking moves the booking to CONFIRMED
func (h *Handler) ConfirmBooking(c *gin.Context) {
	h.transition(c, h.service.ConfirmBooking)
}

// StartBooking moves the booking to IN_PROGRESS
func (h *Handler) StartBooking(c *gin.Context) {
	h.transition(c, h.service.StartBooking)
}

// CompleteBooking moves the booking to COMPLETED
func (h *Handler) CompleteBooking(c *gin.Context) {
	h.transition(c, h.service.CompleteBooking)
}

// ModifyBooking re-prices the booking inside the modification window
func (h *Handler) ModifyBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req ModifyBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.RespondError(c, err)
		return
	}

	booking, err := h.service.ModifyBooking(c.Request.Context(), id, userID, ModifyParams{
		Request:     req.Trip.ToTripRequest(),
		GratuityPct: req.GratuityPct,
		Note:        req.Note,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, booking)
}

// CancelBooking cancels the booking and settles a refund
func (h *Handler) CancelBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.RespondError(c, err)
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), id, userID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, booking)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id, userID uuid.UUID) (*Booking, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := op(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, booking)
}

// RegisterRoutes registers booking routes; callers mount them behind auth
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	b := rg.Group("/bookings")
	{
		b.POST("", h.CreateBooking)
		b.GET("", h.ListBookings)
		b.GET("/:id", h.GetBooking)
		b.POST("/:id/confirm", h.ConfirmBooking)
		b.POST("/:id/start", h.StartBooking)
		b.POST("/:id/complete", h.CompleteBooking)
		b.PUT("/:id", h.ModifyBooking)
		b.POST("/:id/cancel", h.CancelBooking)
	}
}
