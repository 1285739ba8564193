package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/response"
)

// AuthHandler manages the admin token of the caller's session.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Log in as administrator
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	admin, err := h.auth.Login(c.Request.Context(), sess.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, _ := h.auth.Status(c.Request.Context(), sess.ID)
	response.JSON(c, http.StatusOK, gin.H{"message": admin.Message, "username": admin.Username, "token": status})
}

// Logout godoc
// @Summary Drop the administrator token
// @Tags Auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), sess.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Describe the administrator token
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/status [get]
func (h *AuthHandler) Status(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	status, err := h.auth.Status(c.Request.Context(), sess.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}
