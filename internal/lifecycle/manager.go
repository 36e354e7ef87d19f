package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// StartOptions selects the launch mode: background (default), foreground,
// or foreground with hot reload. Reload without foreground is rejected
// before anything is spawned.
type StartOptions struct {
	Foreground bool
	Reload     bool
}

// State is the terminal outcome of a Status call.
type State string

const (
	StateNotRunning       State = "not running"
	StateRunning          State = "running"
	StateRunningUnhealthy State = "running (unhealthy)"
)

// Status is the report produced by Manager.Status. It always carries one of
// the three states; Health relays whatever the server's health surface
// returned when the probe succeeded. DetectedBy names the method that found
// the server; PID is zero when a detector found it without a PID record.
type Status struct {
	State      State
	PID        int
	DetectedBy string
	Health     map[string]any
}

// StopResult reports what Stop did: whether anything was actually stopped
// and how many descendant processes were found and terminated.
type StopResult struct {
	AlreadyStopped bool
	Roots          int
	Descendants    int
}

// Prober performs the bounded health check against the managed server's
// health endpoint. Probe failure is a report, never a fatal error.
type Prober interface {
	Check(ctx context.Context) (map[string]any, error)
}

// Detector is an extra liveness strategy consulted by Status when the PID
// file does not name a trustworthy process. Implementations must be safe
// for concurrent use.
type Detector interface {
	// Alive returns true if the server is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// Event kinds recorded in the journal.
const (
	EventStarted = "start"
	EventStopped = "stop"
	EventExited  = "exit"
)

// Event describes one lifecycle transition for the event journal.
type Event struct {
	Kind        string // EventStarted, EventStopped or EventExited
	Mode        string // background, foreground, foreground+reload, pidfile, sweep
	PID         int
	Descendants int
}

// EventSink receives lifecycle events. Recording is best-effort; a sink
// must not fail the operation that produced the event.
type EventSink interface {
	Record(ev Event)
}

// Spec describes the managed server process.
type Spec struct {
	Name          string        // display name for log and status lines
	Signature     string        // command-line marker identifying the server
	ServeArgs     []string      // argv (after the executable) for the server
	SuperviseArgs []string      // argv for the reload supervisor child
	PIDFile       string        // run/server.pid
	LogPath       string        // dated log file for background output
	Env           []string      // extra environment for the spawned child
	Grace         time.Duration // wait after the polite termination signal
	KillWait      time.Duration // wait after the forceful kill
	Detectors     []Detector    // extra liveness strategies for Status
}

const (
	defaultGrace    = 2 * time.Second
	defaultKillWait = time.Second
)

// Manager owns the start/stop/status contract for a single named server
// process. Invocations run sequentially; the PID file is the only shared
// state and callers are expected to serialize lifecycle commands.
type Manager struct {
	spec   Spec
	table  Table
	store  Store
	prober Prober
	sink   EventSink
	logger *slog.Logger
}

func New(spec Spec, table Table, logger *slog.Logger) *Manager {
	if spec.Grace <= 0 {
		spec.Grace = defaultGrace
	}
	if spec.KillWait <= 0 {
		spec.KillWait = defaultKillWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		spec:   spec,
		table:  table,
		store:  Store{Path: spec.PIDFile},
		logger: logger,
	}
}

// SetProber installs the health probe used by Status.
func (m *Manager) SetProber(p Prober) { m.prober = p }

// SetEventSink installs the lifecycle event journal.
func (m *Manager) SetEventSink(s EventSink) { m.sink = s }

func (m *Manager) record(ev Event) {
	if m.sink != nil {
		m.sink.Record(ev)
	}
}

// matches reports whether rec names a live process that really is our
// server: the command line must contain the signature and, when the record
// carries a start time, the live process must have started at that time.
// Anything else is a stale record and must not drive termination.
func (m *Manager) matches(rec Record) bool {
	return Matches(m.table, rec, m.spec.Signature)
}

// Matches reports whether rec names a live process whose command line
// carries signature and whose start time agrees with the record's metadata.
func Matches(t Table, rec Record, signature string) bool {
	if rec.PID <= 0 || !t.Alive(rec.PID) {
		return false
	}
	cmdline, err := t.Cmdline(rec.PID)
	if err != nil || !strings.Contains(cmdline, signature) {
		return false
	}
	if rec.StartUnix > 0 {
		if cur := t.StartUnix(rec.PID); cur > 0 && cur != rec.StartUnix {
			return false
		}
	}
	return true
}

// Start launches the server in the requested mode. On success the PID file
// names a live process; on failure nothing is left behind.
func (m *Manager) Start(opts StartOptions) error {
	if opts.Reload && !opts.Foreground {
		return ErrInvalidModeCombination
	}
	if rec, err := m.store.Read(); err == nil {
		if m.matches(rec) {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, rec.PID)
		}
		m.logger.Warn("removing stale pid file before start", "pid", rec.PID, "path", m.spec.PIDFile)
		_ = m.store.Remove()
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := m.spec.ServeArgs
	mode := "foreground"
	if opts.Reload {
		args = m.spec.SuperviseArgs
		mode = "foreground+reload"
	}
	// #nosec G204 -- re-exec of our own binary with fixed subcommand args
	cmd := exec.Command(exe, args...)
	if len(m.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), m.spec.Env...)
	}
	if opts.Foreground {
		return m.startForeground(cmd, mode)
	}
	return m.startBackground(cmd)
}

// startBackground spawns the server fully detached with output redirected
// to the dated log file and returns without waiting for readiness. Callers
// poll Status separately.
func (m *Manager) startBackground(cmd *exec.Cmd) error {
	configureSysProcAttr(cmd, true)
	logF, err := openLogFile(m.spec.LogPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	cmd.Stdin = nil
	cmd.Stdout = logF
	cmd.Stderr = logF
	if err := cmd.Start(); err != nil {
		_ = logF.Close()
		return fmt.Errorf("spawn server: %w", err)
	}
	_ = logF.Close()
	pid := cmd.Process.Pid
	if err := m.store.Write(pid, m.table.StartUnix(pid)); err != nil {
		// Without a PID record the child cannot be tracked; take it back
		// down rather than leaking an unmanaged server.
		m.logger.Error("failed to write pid file, terminating server", "pid", pid, "error", err)
		_, _ = terminateTree(m.table, pid, m.spec.Grace, m.spec.KillWait, m.logger)
		return fmt.Errorf("write pid file: %w", err)
	}
	_ = cmd.Process.Release()
	m.record(Event{Kind: EventStarted, Mode: "background", PID: pid})
	m.logger.Info("server started in background", "name", m.spec.Name, "pid", pid, "log", m.spec.LogPath)
	return nil
}

// startForeground spawns the server attached to the current terminal and
// blocks until it exits or a termination signal arrives. The signal path
// runs the same tree-walk shutdown as Stop, so the whole tree (including a
// reload supervisor's worker grandchild) is taken down with it.
func (m *Manager) startForeground(cmd *exec.Cmd, mode string) error {
	configureSysProcAttr(cmd, false)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn server: %w", err)
	}
	pid := cmd.Process.Pid
	if err := m.store.Write(pid, m.table.StartUnix(pid)); err != nil {
		m.logger.Error("failed to write pid file, terminating server", "pid", pid, "error", err)
		_, _ = terminateTree(m.table, pid, m.spec.Grace, m.spec.KillWait, m.logger)
		_ = cmd.Wait()
		return fmt.Errorf("write pid file: %w", err)
	}
	m.record(Event{Kind: EventStarted, Mode: mode, PID: pid})
	m.logger.Info("server started in foreground", "name", m.spec.Name, "pid", pid, "mode", mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case sig := <-sigCh:
		m.logger.Info("termination signal received, shutting down", "signal", sig.String())
		n, terr := terminateTree(m.table, pid, m.spec.Grace, m.spec.KillWait, m.logger)
		// An unkillable process (e.g. stuck in uninterruptible sleep) never
		// exits, so bound the reap rather than hanging the launcher.
		select {
		case <-done:
		case <-time.After(m.spec.KillWait + time.Second):
			m.logger.Warn("server not reaped after kill", "pid", pid)
		}
		_ = m.store.Remove()
		m.record(Event{Kind: EventStopped, Mode: mode, PID: pid, Descendants: n})
		if terr != nil {
			return terr
		}
		m.logger.Info("server stopped", "pid", pid, "descendants_terminated", n)
		return nil
	case err := <-done:
		_ = m.store.Remove()
		m.record(Event{Kind: EventExited, Mode: mode, PID: pid})
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		m.logger.Info("server exited", "pid", pid)
		return nil
	}
}

// Stop terminates the managed server and all of its descendants. With no
// PID file it falls back to a signature sweep of the whole process table,
// since a foreground Ctrl+C or crash can leave a live server with no
// record. Stopping when nothing runs succeeds and reports already stopped.
func (m *Manager) Stop() (StopResult, error) {
	rec, err := m.store.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("unreadable pid file, removing", "path", m.spec.PIDFile, "error", err)
			_ = m.store.Remove()
		}
		return m.sweep()
	}
	if !m.matches(rec) {
		// PID reuse or dead process: clean up, touch nothing.
		m.logger.Warn("stale pid file, cleaning up", "pid", rec.PID)
		_ = m.store.Remove()
		return StopResult{AlreadyStopped: true}, nil
	}
	n, terr := terminateTree(m.table, rec.PID, m.spec.Grace, m.spec.KillWait, m.logger)
	_ = m.store.Remove()
	m.record(Event{Kind: EventStopped, Mode: "pidfile", PID: rec.PID, Descendants: n})
	if terr != nil {
		return StopResult{Roots: 1, Descendants: n}, terr
	}
	m.logger.Info("server stopped", "pid", rec.PID, "descendants_terminated", n)
	return StopResult{Roots: 1, Descendants: n}, nil
}

// sweep terminates every process whose command line matches the server
// signature, treating each match as a tree root.
func (m *Manager) sweep() (StopResult, error) {
	pids, err := m.table.FindBySignature(m.spec.Signature)
	if err != nil {
		return StopResult{}, fmt.Errorf("scan process table: %w", err)
	}
	self := os.Getpid()
	var res StopResult
	for _, pid := range pids {
		if pid == self || !m.table.Alive(pid) {
			continue
		}
		m.logger.Info("found server process by signature", "pid", pid)
		n, terr := terminateTree(m.table, pid, m.spec.Grace, m.spec.KillWait, m.logger)
		res.Roots++
		res.Descendants += n
		if terr != nil {
			return res, terr
		}
		m.record(Event{Kind: EventStopped, Mode: "sweep", PID: pid, Descendants: n})
	}
	if res.Roots == 0 {
		res.AlreadyStopped = true
	}
	return res, nil
}

// Status reports one of NotRunning, Running, or RunningUnhealthy. It never
// fails: stale records self-heal and probe failures downgrade the state
// instead of erroring. When the PID file names nothing trustworthy the
// extra detectors get a turn, since a crashed launcher or a lost PID file
// can leave the server running untracked; Status must agree with the
// signature sweep that Stop would run.
func (m *Manager) Status(ctx context.Context) Status {
	if rec, err := m.store.Read(); err == nil {
		if m.matches(rec) {
			st := Status{State: StateRunning, PID: rec.PID, DetectedBy: "pidfile:" + m.spec.PIDFile}
			return m.probeHealth(ctx, st)
		}
		m.logger.Info("removing stale pid file", "pid", rec.PID)
		_ = m.store.Remove()
	}
	for _, d := range m.spec.Detectors {
		ok, err := d.Alive()
		if err != nil {
			m.logger.Warn("liveness detector failed", "detector", d.Describe(), "error", err)
			continue
		}
		if ok {
			return m.probeHealth(ctx, Status{State: StateRunning, DetectedBy: d.Describe()})
		}
	}
	return Status{State: StateNotRunning}
}

// probeHealth attaches the health report to a running status, downgrading
// the state when the probe fails.
func (m *Manager) probeHealth(ctx context.Context, st Status) Status {
	if m.prober == nil {
		return st
	}
	health, err := m.prober.Check(ctx)
	if err != nil {
		m.logger.Warn("health probe failed", "pid", st.PID, "error", err)
		st.State = StateRunningUnhealthy
		return st
	}
	st.Health = health
	return st
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from resolved configuration
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
