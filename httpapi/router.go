package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	credsvc "github.com/codekids/credsvc"
)

// NewRouter builds the service router. The engine must be ready; logger is
// used for the 500-level server logs the public responses deliberately omit.
func NewRouter(engine *credsvc.Engine, logger zerolog.Logger) *gin.Engine {
	h := newHandlers(engine, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.HandleMethodNotAllowed = true
	router.NoMethod(h.methodNotAllowed)

	router.GET("/healthz", h.healthz)
	router.POST("/requestAdminPasswordReset", h.requestAdminPasswordReset)
	router.POST("/resolveAdminPasswordReset", h.resolveAdminPasswordReset)
	router.POST("/adminCreateUser", h.adminCreateUser)
	router.POST("/requestPasswordReset", h.requestPasswordReset)

	return router
}

// The self-service handler predates the Spanish-language pass over the admin
// surface and still answers method errors in English. Kept as is; clients
// match on status, not body.
func (h *handlers) methodNotAllowed(c *gin.Context) {
	if c.Request.URL.Path == "/requestPasswordReset" {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Método no permitido"})
}

func (h *handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
