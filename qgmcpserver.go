package qgmcpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/Teradata/teradata-qg-mcp-server/internal/config"
	"github.com/Teradata/teradata-qg-mcp-server/internal/detector"
	"github.com/Teradata/teradata-qg-mcp-server/internal/lifecycle"
	"github.com/Teradata/teradata-qg-mcp-server/internal/metrics"
	"github.com/Teradata/teradata-qg-mcp-server/internal/probe"
	"github.com/Teradata/teradata-qg-mcp-server/internal/qgm"
	iapi "github.com/Teradata/teradata-qg-mcp-server/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = lifecycle.Spec

type Status = lifecycle.Status

type StopResult = lifecycle.StopResult

type StartOptions = lifecycle.StartOptions

// Detector is an extra liveness strategy for Spec.Detectors.
type Detector = lifecycle.Detector

// NewSignatureDetector builds a detector that scans the live process table
// for a command-line signature, for use in Spec.Detectors.
func NewSignatureDetector(signature string) Detector {
	return detector.SignatureDetector{Table: lifecycle.SystemTable{}, Signature: signature}
}

type Config = cfg.Config

const (
	StateNotRunning       = lifecycle.StateNotRunning
	StateRunning          = lifecycle.StateRunning
	StateRunningUnhealthy = lifecycle.StateRunningUnhealthy
)

// Manager is a thin facade over internal/lifecycle.Manager.
// It provides a stable public API for embedding.

type Manager struct{ inner *lifecycle.Manager }

// New builds a manager backed by the live process table. healthURL may be
// empty to skip health probing in Status.
func New(spec Spec, healthURL string, healthTimeout time.Duration, logger *slog.Logger) *Manager {
	inner := lifecycle.New(spec, lifecycle.SystemTable{}, logger)
	if healthURL != "" {
		inner.SetProber(probe.HTTP{URL: healthURL, Timeout: healthTimeout})
	}
	return &Manager{inner: inner}
}

func (m *Manager) Start(opts StartOptions) error      { return m.inner.Start(opts) }
func (m *Manager) Stop() (StopResult, error)          { return m.inner.Stop() }
func (m *Manager) Status(ctx context.Context) Status  { return m.inner.Status(ctx) }
func (m *Manager) SetEventSink(s lifecycle.EventSink) { m.inner.SetEventSink(s) }

// LoadConfig reads the YAML config file and overlays the environment.
func LoadConfig(path string) (Config, error) {
	c, err := cfg.Load(path)
	cfg.ApplyEnv(&c)
	return c, err
}

// NewHTTPServer builds the server's HTTP surface (health plus metrics) for
// embedding. manager may be nil when no QueryGrid Manager is configured.
func NewHTTPServer(addr string, manager *qgm.Client, logger *slog.Logger) *http.Server {
	router := iapi.NewRouter(manager, manager != nil, logger)
	return iapi.NewServer(addr, router)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
