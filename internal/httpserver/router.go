package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"push-notification-service/internal/api"
	"push-notification-service/pkg/otel"
	"push-notification-service/pkg/rbac"
)

const readinessTimeout = time.Second

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type RouterConfig struct {
	Handler *api.NotificationHandler
	Logger  *zap.Logger
	// JWTSecret guards PUT and DELETE when non-empty.
	JWTSecret string
	Checks    []ReadinessCheck
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(cfg.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", liveness)
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", liveness)
	r.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/readyz", readiness(cfg.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := cfg.Handler
	r.POST("/notification/", h.AddNotification)
	r.GET("/notifications/", h.ListNotifications)
	r.GET("/notifications/random", h.RandomNotification)
	r.GET("/notifications/:id", h.GetNotification)

	admin := r.Group("/notifications")
	if cfg.JWTSecret != "" {
		admin.Use(AuthMiddleware(cfg.JWTSecret))
		admin.PUT("/:id", RequirePermission(rbac.PermissionUpdateNotification), h.UpdateNotification)
		admin.DELETE("/:id", RequirePermission(rbac.PermissionDeleteNotification), h.DeleteNotification)
	} else {
		admin.PUT("/:id", h.UpdateNotification)
		admin.DELETE("/:id", h.DeleteNotification)
	}

	return r
}

func liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readiness(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": check.Name + "_not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
