package handlers

import (
	"net/http"

	"securestop-backend/internal/api/middleware"
	"securestop-backend/pkg/jwt"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	jwtUtil *jwt.JWTUtil
}

func NewAuthHandler(jwtUtil *jwt.JWTUtil) *AuthHandler {
	return &AuthHandler{jwtUtil: jwtUtil}
}

// RefreshToken reissues the caller's token when it is close to expiry
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := h.jwtUtil.RefreshToken(middleware.BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Token refresh failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Token refreshed successfully", map[string]string{
		"token": token,
	})
}
