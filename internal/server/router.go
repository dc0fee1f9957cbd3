package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/auth"
	"checkin/internal/httpmiddleware"
)

// RouterConfig holds the middleware settings for the engine.
type RouterConfig struct {
	RateLimitPerMin int
	Production      bool
}

// NewRouter wires routes and middleware onto a new gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders(cfg.Production))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	kiosk := v1.Group("/kiosk/:category")
	kiosk.GET("/people", h.ListPeople)
	kiosk.GET("/people/:id/status", h.Status)
	kiosk.POST("/attendance", h.Record)

	v1.GET("/confirmation/:action", h.Confirmation)

	requireAdmin := auth.AdminAuth(h.auth.SigningKey, h.auth.Issuer)
	v1.POST("/auth/login", h.Login)
	v1.GET("/auth/session", requireAdmin, h.Session)

	admin := v1.Group("/admin", requireAdmin)
	admin.GET("/:category/logs", h.Logs)
	admin.POST("/:category/people", h.AddPerson)
	admin.POST("/:category/people/:id/deactivate", h.DeactivatePerson)
	admin.POST("/:category/export", h.Export)

	return r
}

// CORS middleware for browser kiosks.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
