package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schnitzel-auth/internal/service"
)

// HealthCheck comprueba las dependencias del servicio. nil es siempre sano.
type HealthCheck func(ctx context.Context) error

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authSvc *service.AuthService,
	userH *UserHandler,
	emailH *EmailHandler,
	health HealthCheck,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", healthHandler(logger, health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", jsonContentTypeMiddleware())
	api.POST("/users", userH.CreateUser)
	api.POST("/login", userH.Login)

	me := api.Group("/users/me", JWTAuthMiddleware(authSvc))
	me.GET("", userH.Me)
	me.PATCH("", userH.UpdateMe)
	me.DELETE("", userH.DeleteMe)

	email := api.Group("/email")
	email.POST("/confirm/request", JWTAuthMiddleware(authSvc), emailH.RequestConfirmation)
	email.GET("/confirm-email", emailH.ConfirmEmail)
	email.POST("/forgot-password", emailH.ForgotPassword)
	email.GET("/reset-password", emailH.ValidateResetToken)
	email.POST("/reset-password", emailH.ResetPassword)

	return r
}

func healthHandler(logger *zap.Logger, health HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap. No registra
// la query string porque puede llevar tokens.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
