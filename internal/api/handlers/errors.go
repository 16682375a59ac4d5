package handlers

import (
	"errors"
	"net/http"

	"securestop-backend/internal/services"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// serviceError maps domain sentinels onto HTTP statuses
func serviceError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrIncidentNotFound), errors.Is(err, services.ErrTripNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrTripCompleted):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrInvalidAlert):
		status = http.StatusBadRequest
	}
	utils.ErrorResponse(c, status, message, err)
}
