package handlers

import (
	"net/http"
	"slices"

	"securestop-backend/internal/api/middleware"
	"securestop-backend/internal/models"
	"securestop-backend/internal/services"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type TripHandler struct {
	tripService *services.TripService
	validator   *validator.Validate
}

type LocationResponse struct {
	Trip     models.TripSnapshot       `json:"trip"`
	Geofence []services.GeofenceAction `json:"geofence"`
	Accepted int                       `json:"accepted"`
}

func NewTripHandler(tripService *services.TripService) *TripHandler {
	return &TripHandler{
		tripService: tripService,
		validator:   validator.New(),
	}
}

// vehicleAllowed rejects callers whose token is scoped to other vehicles
func (h *TripHandler) vehicleAllowed(c *gin.Context) (string, bool) {
	vehicleID := c.Param("vehicleId")
	if middleware.Viewer(c).Allows(vehicleID) {
		return vehicleID, true
	}
	utils.ErrorResponse(c, http.StatusForbidden, "Vehicle not assigned to caller", nil)
	return "", false
}

func (h *TripHandler) GetTrips(c *gin.Context) {
	viewer := middleware.Viewer(c)
	trips := h.tripService.List()
	trips = slices.DeleteFunc(trips, func(t models.TripSnapshot) bool {
		return !viewer.Allows(t.VehicleID)
	})
	utils.SuccessResponse(c, http.StatusOK, "Trips retrieved successfully", trips)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}
	snap, err := h.tripService.Get(vehicleID)
	if err != nil {
		serviceError(c, "Trip not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Trip retrieved successfully", snap)
}

func (h *TripHandler) transition(c *gin.Context, fn func(string) (models.TripSnapshot, error), message string) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}
	snap, err := fn(vehicleID)
	if err != nil {
		serviceError(c, "Trip transition failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, snap)
}

func (h *TripHandler) StartTrip(c *gin.Context) {
	h.transition(c, h.tripService.StartTrip, "Trip started successfully")
}

func (h *TripHandler) PauseTrip(c *gin.Context) {
	h.transition(c, h.tripService.PauseTrip, "Trip paused successfully")
}

func (h *TripHandler) EndTrip(c *gin.Context) {
	h.transition(c, h.tripService.EndTrip, "Trip ended successfully")
}

func (h *TripHandler) ResetTrip(c *gin.Context) {
	h.transition(c, h.tripService.ResetTrip, "Trip reset successfully")
}

func (h *TripHandler) SetStatus(c *gin.Context) {
	var req services.SetTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	h.transition(c, func(vehicleID string) (models.TripSnapshot, error) {
		return h.tripService.SetStatus(vehicleID, req.Status)
	}, "Trip status updated successfully")
}

// SetRoute replaces the stop list, creating the trip when missing
func (h *TripHandler) SetRoute(c *gin.Context) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}

	var req services.SetRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	snap := h.tripService.SetRoute(vehicleID, req.RouteID, req.Stops)
	if req.DriverName != "" {
		var err error
		if snap, err = h.tripService.SetDriver(vehicleID, req.DriverName); err != nil {
			serviceError(c, "Failed to set driver", err)
			return
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "Route updated successfully", snap)
}

func (h *TripHandler) UpdateLocation(c *gin.Context) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}

	var loc models.VehicleLocation
	if err := c.ShouldBindJSON(&loc); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&loc); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	snap, fired, err := h.tripService.UpdateLocation(vehicleID, loc)
	if err != nil {
		serviceError(c, "Failed to update location", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Location updated successfully", LocationResponse{
		Trip:     snap,
		Geofence: nonNil(fired),
		Accepted: 1,
	})
}

// UpdateLocationBatch applies queued samples in order; a rejected batch
// applies none of them
func (h *TripHandler) UpdateLocationBatch(c *gin.Context) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}

	var req services.LocationBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	snap, fired, err := h.tripService.UpdateLocations(vehicleID, req.Points)
	if err != nil {
		serviceError(c, "Failed to update location", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Locations updated successfully", LocationResponse{
		Trip:     snap,
		Geofence: nonNil(fired),
		Accepted: len(req.Points),
	})
}

func (h *TripHandler) AddScan(c *gin.Context) {
	vehicleID, ok := h.vehicleAllowed(c)
	if !ok {
		return
	}

	var req services.AddScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	snap, err := h.tripService.AddScan(vehicleID, req.Event())
	if err != nil {
		serviceError(c, "Failed to record scan", err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Scan recorded successfully", snap)
}

func nonNil(actions []services.GeofenceAction) []services.GeofenceAction {
	if actions == nil {
		return []services.GeofenceAction{}
	}
	return actions
}

func (h *TripHandler) SetCurrentStop(c *gin.Context) {
	var req services.SetStopIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	h.transition(c, func(vehicleID string) (models.TripSnapshot, error) {
		return h.tripService.SetCurrentStopIndex(vehicleID, req.Index)
	}, "Current stop updated successfully")
}
