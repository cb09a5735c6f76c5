package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/auth"
)

const msgPanic = "Something went wrong!"

// NewRouter builds the engine: shared middleware, the login gate, the
// dashboard assets and the operational endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: msgPanic})
	}))

	router.Use(auth.SecurityHeadersMiddleware(cfg.FormActions...))
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.Sessions != nil {
		router.Use(cfg.Sessions.SessionLoadSave())
	}

	if cfg.Static != nil {
		router.StaticFS("/static", http.FS(cfg.Static))
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	for name, check := range cfg.HealthChecks {
		health.WithCheck(name, check)
	}
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.Auth != nil {
		cfg.Auth.RegisterRoutes(router)

		operator := router.Group("/api", cfg.Auth.Guard().RequireOperator())
		if cfg.Audit != nil {
			operator.GET("/audit", NewAuditController(cfg.Audit).ListEvents)
		}
		if cfg.Maintenance != nil {
			mc := NewMaintenanceController(cfg.Maintenance, cfg.TaskStatus)
			operator.GET("/maintenance/jobs", mc.ListJobs)
			operator.POST("/maintenance/jobs/:name/run", mc.RunJob)
			operator.GET("/tasks/:id", mc.GetTaskStatus)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		respondNotFound(c, "page")
	})

	return router
}
