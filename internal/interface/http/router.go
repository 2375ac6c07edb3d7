package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, gatherer prometheus.Gatherer) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", handler.Healthz)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1", authMiddleware(authSvc))
	{
		api.GET("/channels", handler.ListChannels)
		api.POST("/channels/:channel", handler.JoinChannel)
		api.DELETE("/channels/:channel", handler.PartChannel)

		api.GET("/channels/:channel/faq", handler.ListFAQ)
		api.POST("/channels/:channel/faq", handler.AddFAQ)
		api.PUT("/channels/:channel/faq", handler.ImportFAQ)
		api.PATCH("/channels/:channel/faq/:position", handler.UpdateFAQ)
		api.DELETE("/channels/:channel/faq/:position", handler.RemoveFAQ)

		api.GET("/channels/:channel/settings", handler.GetSettings)
		api.PUT("/channels/:channel/settings", handler.UpdateSettings)

		api.POST("/channels/:channel/ask", handler.Ask)
		api.POST("/channels/:channel/backup", handler.Backup)
		api.POST("/channels/:channel/restore", handler.Restore)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
