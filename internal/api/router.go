package api

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter initializes and configures the Gin router.
func SetupRouter(h *Handler, jwtSecret []byte, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), Metrics())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", RequestIDHeader)
	config.ExposeHeaders = []string{RequestIDHeader}
	r.Use(cors.New(config))

	r.GET("/health", HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/redirect/:code", h.ResolveHandler)

		shortcuts := apiGroup.Group("/shortcuts", AuthMiddleware(jwtSecret))
		shortcuts.GET("", h.ListShortcuts)
		shortcuts.POST("", h.CreateShortcut)
		shortcuts.GET("/:id", h.ShowShortcut)
		shortcuts.PUT("/:id", h.UpdateShortcut)
		shortcuts.DELETE("/:id", h.RetireShortcut)
	}

	r.GET("/:code", h.RedirectHandler)

	return r
}
