package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterConfig assembles the registry's gin.Engine, mirroring
// internal/server/router.go's config-struct-plus-NewRouter shape.
type RouterConfig struct {
	Handlers     *Handlers
	AllowOrigins []string
}

// NewRouter builds the registry's HTTP surface.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("registry"))
	router.Use(TraceID())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthcheck", cfg.Handlers.Healthcheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/jobs", cfg.Handlers.CreateJob)
		api.GET("/jobs", cfg.Handlers.ListJobs)
		api.GET("/jobs/candidates", cfg.Handlers.ListCandidates)
		api.GET("/jobs/:id", cfg.Handlers.GetJob)
		api.PUT("/jobs/:id", cfg.Handlers.UpdateJob)
		api.GET("/jobs/:id/history", cfg.Handlers.JobHistory)
		api.POST("/jobs/:id/claim", cfg.Handlers.ClaimJob)
		api.POST("/jobs/:id/retry", cfg.Handlers.RetryJob)
		api.POST("/jobs/:id/cancel", cfg.Handlers.CancelJob)

		api.GET("/stats", cfg.Handlers.Stats)
		api.POST("/pause", cfg.Handlers.Pause)
		api.POST("/resume", cfg.Handlers.Resume)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", nil)
	})

	return router
}
