package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Teradata/teradata-qg-mcp-server/internal/lifecycle"
)

// Supervisor runs the server as a worker child and restarts it whenever the
// watched config file changes. It backs the foreground reload mode: the
// supervisor stays in the caller's terminal while workers come and go
// underneath it.
type Supervisor struct {
	config Config
	logger *slog.Logger
}

// Config describes what the supervisor runs and watches.
type Config struct {
	// ConfigPath is the file whose changes trigger a worker restart.
	ConfigPath string
	// Command is the worker argv; Command[0] is the executable.
	Command []string
	// Env is appended to the inherited environment of each worker.
	Env []string
	// Debounce collapses editor save bursts into one restart.
	Debounce time.Duration
	// Grace and KillWait bound worker termination, same semantics as stop.
	Grace    time.Duration
	KillWait time.Duration
	Table    lifecycle.Table
	Logger   *slog.Logger
}

// New builds a supervisor. Command must name the worker argv.
func New(config Config) (*Supervisor, error) {
	if len(config.Command) == 0 {
		return nil, fmt.Errorf("supervisor: empty worker command")
	}
	if config.ConfigPath == "" {
		return nil, fmt.Errorf("supervisor: no config path to watch")
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if config.Grace <= 0 {
		config.Grace = 2 * time.Second
	}
	if config.KillWait <= 0 {
		config.KillWait = time.Second
	}
	if config.Table == nil {
		config.Table = lifecycle.SystemTable{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Supervisor{config: config, logger: config.Logger}, nil
}

// Run starts the worker and blocks until ctx is cancelled or the worker
// exits on its own. A config change terminates the worker tree and starts a
// fresh one; cancellation terminates the tree and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files via rename, which drops a watch on the file
	// itself. Watching the parent directory survives that.
	absPath, err := filepath.Abs(s.config.ConfigPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	cmd, exited, err := s.spawn()
	if err != nil {
		return err
	}
	s.logger.Info("supervisor started", "worker_pid", cmd.Process.Pid, "watching", absPath)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			s.terminate(cmd)
			<-exited
			return nil

		case err := <-exited:
			// Worker died without a restart in flight.
			if err != nil {
				return fmt.Errorf("worker exited: %w", err)
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				s.terminate(cmd)
				<-exited
				return nil
			}
			if filepath.Clean(ev.Name) != absPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Info("config change detected", "op", ev.Op.String(), "path", ev.Name)
			pending = time.After(s.config.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				s.terminate(cmd)
				<-exited
				return nil
			}
			s.logger.Error("watcher error", "error", err)

		case <-pending:
			pending = nil
			s.logger.Info("restarting worker", "pid", cmd.Process.Pid)
			s.terminate(cmd)
			<-exited
			cmd, exited, err = s.spawn()
			if err != nil {
				return fmt.Errorf("restart worker: %w", err)
			}
			s.logger.Info("worker restarted", "worker_pid", cmd.Process.Pid)
		}
	}
}

// spawn launches one worker in its own process group and returns a channel
// that yields its exit error.
func (s *Supervisor) spawn() (*exec.Cmd, chan error, error) {
	// #nosec G204
	cmd := exec.Command(s.config.Command[0], s.config.Command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), s.config.Env...)
	configureWorkerAttrs(cmd)
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start worker: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	return cmd, exited, nil
}

// terminate stops the worker and everything it spawned, children strictly
// before the worker itself.
func (s *Supervisor) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if _, err := lifecycle.TerminateTree(s.config.Table, cmd.Process.Pid, s.config.Grace, s.config.KillWait, s.logger); err != nil {
		s.logger.Warn("worker termination incomplete", "pid", cmd.Process.Pid, "error", err)
	}
}
