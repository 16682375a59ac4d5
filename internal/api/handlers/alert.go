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

type AlertHandler struct {
	notificationService *services.NotificationService
	validator           *validator.Validate
}

func NewAlertHandler(notificationService *services.NotificationService) *AlertHandler {
	return &AlertHandler{
		notificationService: notificationService,
		validator:           validator.New(),
	}
}

// GetAlerts returns the inbox entries the caller may see
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	prefs := h.notificationService.Prefs(c.Request.Context(), middleware.CallerID(c))
	alerts := h.notificationService.VisibleInbox(middleware.CallerRole(c), prefs)
	utils.SuccessResponse(c, http.StatusOK, "Alerts retrieved successfully", alerts)
}

func (h *AlertHandler) GetStatistics(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Alert statistics retrieved successfully", h.notificationService.Statistics())
}

func (h *AlertHandler) GetRoadConditions(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Road condition updates retrieved successfully", h.notificationService.RoadConditionUpdates())
}

// ReceiveAlert accepts a fully formed alert from an upstream source
func (h *AlertHandler) ReceiveAlert(c *gin.Context) {
	var req services.ReceiveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	alert, err := h.notificationService.ReceiveAlert(c.Request.Context(), req.Message(middleware.CallerRole(c)))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to receive alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Alert received successfully", alert)
}

// SendDriverAlert sends a templated alert on behalf of a driver
func (h *AlertHandler) SendDriverAlert(c *gin.Context) {
	var req services.SendDriverAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	viewer := middleware.Viewer(c)
	if req.VehicleID == "" && len(viewer.VehicleIDs) > 0 {
		req.VehicleID = viewer.VehicleIDs[0]
	}
	if req.VehicleID != "" && !viewer.Allows(req.VehicleID) {
		utils.ErrorResponse(c, http.StatusForbidden, "Vehicle not assigned to caller", nil)
		return
	}

	alert, err := h.notificationService.SendDriverAlert(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to send alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Alert sent successfully", alert)
}

func (h *AlertHandler) SendAdminBroadcast(c *gin.Context) {
	var req services.SendAdminBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	alert, err := h.notificationService.SendAdminBroadcast(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to send broadcast", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Broadcast sent successfully", alert)
}

// RemoveAlert deletes an entry from the shared inbox for every viewer
func (h *AlertHandler) RemoveAlert(c *gin.Context) {
	alertID := c.Param("id")
	if !h.notificationService.RemoveAlert(c.Request.Context(), alertID) {
		utils.ErrorResponse(c, http.StatusNotFound, "Alert not found", nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert removed successfully", nil)
}

// GetTemplates lists the alert templates drivers can send
func (h *AlertHandler) GetTemplates(c *gin.Context) {
	type templateView struct {
		ID models.TemplateID `json:"id"`
		models.Template
	}
	out := make([]templateView, 0, len(models.TemplateIDs()))
	for _, id := range models.TemplateIDs() {
		tpl, _ := models.LookupTemplate(id)
		out = append(out, templateView{ID: id, Template: tpl})
	}
	utils.SuccessResponse(c, http.StatusOK, "Templates retrieved successfully", out)
}

func (h *AlertHandler) GetPrefs(c *gin.Context) {
	prefs := h.notificationService.Prefs(c.Request.Context(), middleware.CallerID(c))
	utils.SuccessResponse(c, http.StatusOK, "Preferences retrieved successfully", prefs)
}

func (h *AlertHandler) UpdatePrefs(c *gin.Context) {
	var patch models.NotificationPrefsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	prefs := h.notificationService.UpdatePrefs(c.Request.Context(), middleware.CallerID(c), patch)
	utils.SuccessResponse(c, http.StatusOK, "Preferences updated successfully", prefs)
}
