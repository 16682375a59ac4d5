package handlers

import (
	"net/http"

	"securestop-backend/internal/api/middleware"
	"securestop-backend/internal/models"
	"securestop-backend/internal/services"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type IncidentHandler struct {
	incidentService *services.IncidentService
	validator       *validator.Validate
}

func NewIncidentHandler(incidentService *services.IncidentService) *IncidentHandler {
	return &IncidentHandler{
		incidentService: incidentService,
		validator:       validator.New(),
	}
}

// GetIncidents lists incidents, optionally filtered by status and vehicleId
func (h *IncidentHandler) GetIncidents(c *gin.Context) {
	var filter models.IncidentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "status must be one of: open resolved", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Incidents retrieved successfully", h.incidentService.List(filter))
}

func (h *IncidentHandler) GetIncident(c *gin.Context) {
	incident, err := h.incidentService.Get(c.Param("id"))
	if err != nil {
		serviceError(c, "Incident not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Incident retrieved successfully", incident)
}

func (h *IncidentHandler) AddNote(c *gin.Context) {
	var req services.IncidentNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	incident, err := h.incidentService.AddNote(c.Param("id"), req.Message, middleware.CallerRole(c))
	if err != nil {
		serviceError(c, "Failed to add note", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Note added successfully", incident)
}

// ResolveIncident closes an incident. The body is optional.
func (h *IncidentHandler) ResolveIncident(c *gin.Context) {
	var req services.ResolveIncidentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if err := h.validator.Struct(&req); err != nil {
			utils.ValidationErrorResponse(c, err)
			return
		}
	}

	incident, err := h.incidentService.Resolve(c.Param("id"), req.Message, middleware.CallerRole(c))
	if err != nil {
		serviceError(c, "Failed to resolve incident", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Incident resolved successfully", incident)
}

func (h *IncidentHandler) ClearIncidents(c *gin.Context) {
	h.incidentService.ClearAll()
	utils.SuccessResponse(c, http.StatusOK, "Incidents cleared successfully", nil)
}
