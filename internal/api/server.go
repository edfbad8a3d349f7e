// Package api exposes the engine over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"imprint/app"
	"imprint/internal"
	"imprint/internal/config"
)

// Server routes HTTP requests to the run service.
type Server struct {
	router   *gin.Engine
	service  *app.RunService
	limiter  *rate.Limiter
	metrics  *httpMetrics
	registry *prometheus.Registry
	logger   *internal.Logger
}

// NewServer wires routes and middleware. Request metrics are registered on
// registry, which is also what /metrics serves.
func NewServer(service *app.RunService, cfg config.ServerConfig, registry *prometheus.Registry, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   gin.New(),
		service:  service,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics:  newHTTPMetrics(registry),
		registry: registry,
		logger:   logger.WithComponent("API"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), s.metricsMiddleware(), s.rateLimitMiddleware())
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	v1.POST("/validate", s.handleValidate)
	v1.POST("/calibrate", s.handleCalibrate)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
}
