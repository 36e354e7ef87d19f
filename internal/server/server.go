package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Teradata/teradata-qg-mcp-server/internal/metrics"
	"github.com/Teradata/teradata-qg-mcp-server/internal/qgm"
)

// ManagerProbe is the QueryGrid Manager surface the health endpoint needs.
type ManagerProbe interface {
	APIInfo(ctx context.Context) (qgm.APIInfo, error)
}

// Router serves the managed server's HTTP surface.
// Endpoints:
//
//	GET /health   liveness plus QueryGrid Manager reachability
//	GET /metrics  Prometheus metrics
type Router struct {
	manager    ManagerProbe
	configured bool
	logger     *slog.Logger
}

// NewRouter builds the HTTP surface. manager may be nil when no QueryGrid
// Manager credentials are configured; health then reports it as
// not-configured instead of probing.
func NewRouter(manager ManagerProbe, configured bool, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{manager: manager, configured: configured, logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/health", r.handleHealth)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer builds a standalone HTTP server on addr using this router. The
// caller runs ListenAndServe so bind failures surface to it.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// QueryGrid reachability states reported by /health.
const (
	qgOK            = "ok"
	qgUnreachable   = "unreachable"
	qgNotConfigured = "not-configured"
)

// handleHealth reports the server as alive and relays the QueryGrid
// Manager's reachability. An unreachable manager degrades the response to
// 503 so callers polling the endpoint see the outage; a manager that was
// never configured is not an outage and stays 200.
func (r *Router) handleHealth(c *gin.Context) {
	doc := gin.H{"app": "ok"}
	status := http.StatusOK

	switch {
	case !r.configured || r.manager == nil:
		doc["querygrid"] = qgNotConfigured
	default:
		begin := time.Now()
		info, err := r.manager.APIInfo(c.Request.Context())
		metrics.ObserveQuerygridProbe(time.Since(begin).Seconds())
		if err != nil {
			r.logger.Warn("querygrid manager probe failed", "error", err)
			doc["querygrid"] = qgUnreachable
			status = http.StatusServiceUnavailable
		} else {
			doc["querygrid"] = qgOK
			doc["querygrid_version"] = info.Version
		}
	}

	metrics.IncHealthRequest(doc["querygrid"].(string))
	c.JSON(status, doc)
}
