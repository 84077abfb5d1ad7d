package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	credsvc "github.com/codekids/credsvc"
)

type handlers struct {
	engine   *credsvc.Engine
	logger   zerolog.Logger
	validate *validator.Validate
}

func newHandlers(engine *credsvc.Engine, logger zerolog.Logger) *handlers {
	return &handlers{
		engine:   engine,
		logger:   logger,
		validate: validator.New(),
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the socket peer.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return host
	}
	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}
	return "unknown"
}

func (h *handlers) requestContext(c *gin.Context) context.Context {
	return credsvc.WithClientIP(c.Request.Context(), clientIP(c))
}

// bearerToken extracts the Bearer credential, empty when absent or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *handlers) requestAdminPasswordReset(c *gin.Context) {
	var req emailRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email requerido"})
		return
	}

	_, err := h.engine.RequestAdminPasswordReset(h.requestContext(c), req.Email)
	switch {
	case err == nil, errors.Is(err, credsvc.ErrRateLimited):
		// Rate-limited callers get the generic acknowledgment; the response
		// must not reveal the budget either.
		c.JSON(http.StatusOK, gin.H{"message": "Solicitud registrada"})
	default:
		h.logger.Error().Err(err).Str("endpoint", "requestAdminPasswordReset").Msg("intake failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
	}
}

type resolveRequest struct {
	NotificationID string `json:"notificationId"`
	NewPassword    string `json:"newPassword"`
}

func (h *handlers) resolveAdminPasswordReset(c *gin.Context) {
	ctx := h.requestContext(c)

	admin := h.engine.ResolveAdmin(ctx, bearerToken(c))
	if admin == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No autorizado"})
		return
	}

	var req resolveRequest
	_ = c.ShouldBindJSON(&req)
	if req.NotificationID == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parámetros inválidos"})
		return
	}

	result, err := h.engine.ResolveAdminPasswordReset(ctx, admin, req.NotificationID, req.NewPassword)
	switch {
	case err == nil && result.AlreadyResolved:
		c.JSON(http.StatusOK, gin.H{"message": "Ya resuelta"})
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Contraseña actualizada y solicitud resuelta"})
	case errors.Is(err, credsvc.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Solicitud no encontrada"})
	case errors.Is(err, credsvc.ErrPasswordPolicy):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contraseña no cumple con complejidad"})
	default:
		h.logger.Error().Err(err).Str("endpoint", "resolveAdminPasswordReset").Msg("resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
	}
}

type createUserRequest struct {
	Nombre          string `json:"nombre" validate:"required"`
	ApellidoPaterno string `json:"apellidoPaterno" validate:"required"`
	ApellidoMaterno string `json:"apellidoMaterno" validate:"required"`
	Role            string `json:"role" validate:"required"`
	SchoolID        string `json:"schoolId"`
}

func (h *handlers) adminCreateUser(c *gin.Context) {
	ctx := h.requestContext(c)

	admin := h.engine.ResolveAdmin(ctx, bearerToken(c))
	if admin == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No autorizado"})
		return
	}

	var req createUserRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campos requeridos: nombre, apellidoPaterno, apellidoMaterno, role"})
		return
	}

	result, err := h.engine.ProvisionAccount(ctx, admin, credsvc.ProvisionInput{
		Nombre:          req.Nombre,
		ApellidoPaterno: req.ApellidoPaterno,
		ApellidoMaterno: req.ApellidoMaterno,
		Role:            req.Role,
		SchoolID:        req.SchoolID,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"uid":          result.UID,
			"email":        result.Email,
			"tempPassword": result.TempPassword,
		})
	case errors.Is(err, credsvc.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campos requeridos: nombre, apellidoPaterno, apellidoMaterno, role"})
	default:
		h.logger.Error().Err(err).Str("endpoint", "adminCreateUser").Msg("provisioning failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
	}
}

func (h *handlers) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email es requerido"})
		return
	}

	err := h.engine.RequestPasswordReset(h.requestContext(c), req.Email)
	if err != nil && !errors.Is(err, credsvc.ErrRateLimited) {
		// The engine already masks internal failures; anything else surfacing
		// here is unexpected but still answered generically.
		h.logger.Error().Err(err).Str("endpoint", "requestPasswordReset").Msg("intake failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Solicitud recibida"})
}
