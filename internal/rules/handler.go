package rules

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Handler handles admin HTTP requests for pricing rules
type Handler struct {
	service *Service
}

// NewHandler creates a new rules handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RuleRequest is the admin payload for creating or updating a rule
type RuleRequest struct {
	Name          string      `json:"name" binding:"required"`
	RuleType      RuleType    `json:"rule_type" binding:"required"`
	ServiceType   ServiceType `json:"service_type" binding:"required"`
	Priority      int         `json:"priority"`
	IsActive      *bool       `json:"is_active"`
	EffectiveFrom *time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time  `json:"effective_to"`
	Conditions    []Condition `json:"conditions"`
	Calculation   Calculation `json:"calculation" binding:"required"`
}

func (r *RuleRequest) toModel() *PricingRule {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &PricingRule{
		Name:          r.Name,
		RuleType:      r.RuleType,
		ServiceType:   r.ServiceType,
		Priority:      r.Priority,
		IsActive:      active,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		Conditions:    r.Conditions,
		Calculation:   r.Calculation,
	}
}

// CreateRule creates a pricing rule
func (h *Handler) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rule := req.toModel()
	if err := h.service.CreateRule(c.Request.Context(), rule); err != nil {
		common.RespondError(c, err)
		return
	}

	common.CreatedResponse(c, rule)
}

// UpdateRule rewrites a pricing rule
func (h *Handler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid rule id")
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rule := req.toModel()
	rule.ID = id
	if err := h.service.UpdateRule(c.Request.Context(), rule); err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, rule)
}

// GetRule fetches a single rule
func (h *Handler) GetRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid rule id")
		return
	}

	rule, err := h.service.GetRule(c.Request.Context(), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponse(c, rule)
}

// ListRules returns a page of rules with an optional service_type filter
func (h *Handler) ListRules(c *gin.Context) {
	var filter *ServiceType
	if raw := c.Query("service_type"); raw != "" {
		st := ServiceType(raw)
		if !ValidServiceType(st) {
			common.ErrorResponse(c, http.StatusBadRequest, "unknown service_type")
			return
		}
		filter = &st
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	list, total, err := h.service.ListRules(c.Request.Context(), filter, perPage, (page-1)*perPage)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SuccessResponseWithMeta(c, list, &common.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	})
}

// DeactivateRule soft-deactivates a rule
func (h *Handler) DeactivateRule(c *gin.Context) {
	h.setActive(c, false)
}

// ActivateRule re-activates a rule
func (h *Handler) ActivateRule(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid rule id")
		return
	}

	var opErr error
	if active {
		opErr = h.service.ActivateRule(c.Request.Context(), id)
	} else {
		opErr = h.service.DeactivateRule(c.Request.Context(), id)
	}
	if opErr != nil {
		common.RespondError(c, opErr)
		return
	}

	common.SuccessResponse(c, gin.H{"id": id, "is_active": active})
}

// RegisterAdminRoutes registers admin rule routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	r := rg.Group("/rules")
	{
		r.GET("", h.ListRules)
		r.POST("", h.CreateRule)
		r.GET("/:id", h.GetRule)
		r.PUT("/:id", h.UpdateRule)
		r.POST("/:id/activate", h.ActivateRule)
		r.POST("/:id/deactivate", h.DeactivateRule)
	}
}
