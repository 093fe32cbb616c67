package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schnitzel-auth/internal/service"
)

// EmailHandler expone confirmacion de correo y reset de contraseña.
type EmailHandler struct {
	logger    *zap.Logger
	tokenServ *service.TokenService
}

func NewEmailHandler(logger *zap.Logger, tokenServ *service.TokenService) *EmailHandler {
	return &EmailHandler{
		logger:    logger,
		tokenServ: tokenServ,
	}
}

// RequestConfirmation maneja POST /api/email/confirm/request (autenticado).
func (h *EmailHandler) RequestConfirmation(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.tokenServ.SendConfirmation(c.Request.Context(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "user has no email"})
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrDelivery):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.logger.Error("send confirmation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send confirmation"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "confirmation_sent"})
}

// ConfirmEmail maneja GET /api/email/confirm-email?token=.
func (h *EmailHandler) ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	if err := h.tokenServ.ConfirmEmail(c.Request.Context(), token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			h.logger.Error("confirm email failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not confirm email"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "email_confirmed"})
}

// ForgotPassword maneja POST /api/email/forgot-password. Responde 202 tambien
// cuando el correo no existe, para no revelar cuentas.
func (h *EmailHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.tokenServ.RequestReset(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		if errors.Is(err, service.ErrDelivery) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
			return
		}
		h.logger.Error("request reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not request reset"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reset_requested"})
}

// ValidateResetToken maneja GET /api/email/reset-password?token=.
func (h *EmailHandler) ValidateResetToken(c *gin.Context) {
	_, err := h.tokenServ.ValidateResetToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
			return
		}
		h.logger.Error("validate reset token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "valid"})
}

// ResetPassword maneja POST /api/email/reset-password.
func (h *EmailHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.tokenServ.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrEmptyPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
			return
		case errors.Is(err, service.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("reset password failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}
