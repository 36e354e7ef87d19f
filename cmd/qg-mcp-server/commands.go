package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Teradata/teradata-qg-mcp-server/internal/config"
	"github.com/Teradata/teradata-qg-mcp-server/internal/detector"
	"github.com/Teradata/teradata-qg-mcp-server/internal/history"
	"github.com/Teradata/teradata-qg-mcp-server/internal/lifecycle"
	"github.com/Teradata/teradata-qg-mcp-server/internal/logger"
	"github.com/Teradata/teradata-qg-mcp-server/internal/metrics"
	"github.com/Teradata/teradata-qg-mcp-server/internal/probe"
	"github.com/Teradata/teradata-qg-mcp-server/internal/qgm"
	"github.com/Teradata/teradata-qg-mcp-server/internal/reload"
	"github.com/Teradata/teradata-qg-mcp-server/internal/server"
)

const (
	serverName = "qg-mcp-server"
	// signature identifies our processes in the table. The bare binary name
	// matches both the serve worker and the supervise parent.
	signature  = "qg-mcp-server"
	pidFile    = "run/server.pid"
	historyDSN = "run/history.db"
)

type command struct {
	flags *GlobalFlags
}

// resolve loads the config file, overlays the environment, and builds the
// launcher-side logger. A malformed config file warns and proceeds on
// defaults.
func (c command) resolve() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	log := logger.Config{Level: cfg.Logging.Level}.New(os.Stderr)
	if err != nil {
		log.Warn("config file unusable, continuing with defaults", "error", err)
	}
	config.ApplyEnv(&cfg)
	return cfg, log, nil
}

// newManager wires the lifecycle manager with the live process table, the
// health probe, and the event journal.
func (c command) newManager(cfg config.Config, log *slog.Logger) (*lifecycle.Manager, *history.Journal) {
	table := lifecycle.SystemTable{}
	spec := lifecycle.Spec{
		Name:          serverName,
		Signature:     signature,
		ServeArgs:     []string{"serve", "--config", c.flags.ConfigPath},
		SuperviseArgs: []string{"supervise", "--config", c.flags.ConfigPath},
		PIDFile:       pidFile,
		LogPath:       logCfg(cfg).FilePath(time.Now()),
		Env:           cfg.Env(),
		// Catches a server left running without a PID record, e.g. after
		// the launcher itself died. Stop's sweep would find it; status
		// should too.
		Detectors: []lifecycle.Detector{
			detector.SignatureDetector{Table: table, Signature: signature},
		},
	}
	mgr := lifecycle.New(spec, table, log)
	mgr.SetProber(probe.HTTP{
		URL:     cfg.Server.HealthURL(),
		Timeout: cfg.Server.HealthCheckTimeout,
	})

	var journal *history.Journal
	if err := os.MkdirAll("run", 0o750); err == nil {
		journal, err = history.Open(historyDSN, log)
		if err != nil {
			log.Warn("event journal unavailable", "error", err)
		} else {
			mgr.SetEventSink(journal)
		}
	}
	return mgr, journal
}

func logCfg(cfg config.Config) logger.Config {
	return logger.Config{
		Dir:           cfg.Logging.Dir,
		Level:         cfg.Logging.Level,
		MaxSizeMB:     cfg.Logging.MaxFileSizeMB,
		MaxBackups:    cfg.Logging.BackupCount,
		RetentionDays: cfg.Logging.RetentionDays,
	}
}

// Start launches the server in the requested mode.
func (c command) Start(cobraCmd *cobra.Command, f StartFlags) error {
	cfg, log, err := c.resolve()
	if err != nil {
		return err
	}
	applyStartOverrides(&cfg, cobraCmd, f)
	mgr, journal := c.newManager(cfg, log)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	// Refuse to spawn into a port that is already taken; a server that dies
	// on bind after daemonizing is much harder to diagnose.
	if err := checkPortAvailable(cfg.Server.ListenAddr()); err != nil {
		return err
	}

	if err := mgr.Start(lifecycle.StartOptions{Foreground: f.Foreground, Reload: f.Reload}); err != nil {
		return err
	}
	if !f.Foreground {
		fmt.Printf("%s started on %s (log: %s)\n", serverName, cfg.Server.ListenAddr(), logCfg(cfg).FilePath(time.Now()))
	}
	return nil
}

// Stop terminates the server tree and prints what happened.
func (c command) Stop() error {
	cfg, log, err := c.resolve()
	if err != nil {
		return err
	}
	mgr, journal := c.newManager(cfg, log)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	res, err := mgr.Stop()
	if err != nil {
		return err
	}
	if res.AlreadyStopped {
		fmt.Printf("%s is not running\n", serverName)
		return nil
	}
	fmt.Printf("%s stopped (%d process(es), %d child process(es))\n", serverName, res.Roots, res.Descendants)
	return nil
}

// Status prints one line for the state plus health details when available.
func (c command) Status(ctx context.Context, f StatusFlags) error {
	cfg, log, err := c.resolve()
	if err != nil {
		return err
	}
	mgr, journal := c.newManager(cfg, log)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	st := mgr.Status(ctx)
	switch st.State {
	case lifecycle.StateNotRunning:
		fmt.Printf("%s: not running\n", serverName)
	case lifecycle.StateRunning:
		fmt.Printf("%s: running (%s)\n", serverName, describeStatus(st))
		printHealth(st.Health)
	case lifecycle.StateRunningUnhealthy:
		fmt.Printf("%s: running (%s) but not responding on %s\n", serverName, describeStatus(st), cfg.Server.HealthURL())
	}

	if f.History > 0 && journal != nil {
		entries, err := journal.Recent(ctx, f.History)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		for _, e := range entries {
			fmt.Printf("  %s  %-5s  mode=%s pid=%d children=%d\n",
				e.Timestamp.Format(time.RFC3339), e.Kind, e.Mode, e.PID, e.Descendants)
		}
	}
	return nil
}

// applyStartOverrides overlays explicitly set start flags on the resolved
// config. Changed() distinguishes "--port 0 never given" from a real zero.
func applyStartOverrides(cfg *config.Config, cobraCmd *cobra.Command, f StartFlags) {
	flags := cobraCmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = f.Host
	}
	if flags.Changed("port") {
		cfg.Server.Port = f.Port
	}
	if flags.Changed("log-dir") {
		cfg.Logging.Dir = f.LogDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if flags.Changed("qgm-host") {
		cfg.QueryGrid.Host = f.QGMHost
	}
	if flags.Changed("qgm-port") {
		cfg.QueryGrid.Port = f.QGMPort
	}
	if flags.Changed("qgm-username") {
		cfg.QueryGrid.Username = f.QGMUsername
	}
	if flags.Changed("qgm-password") {
		cfg.QueryGrid.Password = f.QGMPassword
	}
	if flags.Changed("qgm-verify-ssl") {
		cfg.QueryGrid.VerifySSL = f.QGMVerifySSL
	}
}

// describeStatus renders how a running server was found. Without a PID
// record only the detection method can be named.
func describeStatus(st lifecycle.Status) string {
	if st.PID > 0 {
		return fmt.Sprintf("pid %d", st.PID)
	}
	return "untracked, detected by " + st.DetectedBy
}

func printHealth(health map[string]any) {
	if len(health) == 0 {
		return
	}
	keys := make([]string, 0, len(health))
	for k := range health {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, health[k])
	}
}

// Serve runs the HTTP server in this process. It is spawned by Start and
// normally not invoked by hand.
func (c command) Serve(ctx context.Context, f ServeFlags) error {
	cfg, _, err := c.resolve()
	if err != nil {
		return err
	}
	if f.Host != "" {
		cfg.Server.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Server.Port = f.Port
	}

	lc := logCfg(cfg)
	w, err := lc.Writer(time.Now())
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	log := lc.New(w)
	if n, err := lc.CleanupAged(time.Now()); err == nil && n > 0 {
		log.Info("removed aged log files", "count", n)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	metrics.IncStart("serve")

	qgmCfg := qgm.Config{
		Host:      cfg.QueryGrid.Host,
		Port:      cfg.QueryGrid.Port,
		Username:  cfg.QueryGrid.Username,
		Password:  cfg.QueryGrid.Password,
		VerifySSL: cfg.QueryGrid.VerifySSL,
		Timeout:   cfg.QueryGrid.RequestTimeout,
		Logger:    log,
	}
	var mgrProbe server.ManagerProbe
	if qgmCfg.Configured() {
		mgrProbe = qgm.New(qgmCfg)
	}

	router := server.NewRouter(mgrProbe, qgmCfg.Configured(), log)
	srv := server.NewServer(cfg.Server.ListenAddr(), router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("server listening", "addr", cfg.Server.ListenAddr(), "querygrid_configured", qgmCfg.Configured())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Supervise runs the serve worker under a config-watching supervisor. It
// backs start --foreground --reload.
func (c command) Supervise(ctx context.Context) error {
	cfg, log, err := c.resolve()
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	sup, err := reload.New(reload.Config{
		ConfigPath: c.flags.ConfigPath,
		Command:    []string{exe, "serve", "--config", c.flags.ConfigPath},
		Env:        cfg.Env(),
		Logger:     log,
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sup.Run(ctx)
}
