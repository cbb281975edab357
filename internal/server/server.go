package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/watchdog"
)

// HealthSource reports background component liveness.
type HealthSource interface {
	GetStatus() []watchdog.ComponentHealth
	AllHealthy() bool
}

type componentStatus struct {
	Name          string    `json:"name"`
	Healthy       bool      `json:"healthy"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Server exposes /healthz and /metrics for operators.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	health HealthSource
}

func New(addr string, health HealthSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine: r,
		health: health,
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return s
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("%s %s -> %d in %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Health answers 503 while any registered component missed its heartbeat.
func (s *Server) Health(c *gin.Context) {
	status := s.health.GetStatus()
	components := make([]componentStatus, 0, len(status))
	for _, h := range status {
		components = append(components, componentStatus{Name: h.Name, Healthy: h.Healthy, LastHeartbeat: h.LastHeartbeat})
	}

	code, state := http.StatusOK, "ok"
	if !s.health.AllHealthy() {
		code, state = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(code, gin.H{"status": state, "components": components})
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown. It returns nil after a graceful stop.
func (s *Server) Start() error {
	logging.Info("Ops server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
