package lifecycle

import "errors"

// Sentinel errors surfaced by Start and Stop. Status never returns these;
// probe failures are folded into its reported state instead.
var (
	// ErrAlreadyRunning is returned by Start when the PID file names a live
	// process whose command line matches the managed server signature.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrInvalidModeCombination is returned by Start before anything is
	// spawned when reload mode is requested without foreground mode.
	ErrInvalidModeCombination = errors.New("reload mode requires foreground mode")

	// ErrTerminationFailure is returned when a process survives both the
	// polite termination signal and the forceful kill escalation.
	ErrTerminationFailure = errors.New("process did not exit after forceful kill")

	// ErrStaleReference indicates the PID file named a PID that has been
	// reused by an unrelated process. Callers self-heal (delete the file)
	// rather than failing; the sentinel exists for logging and tests.
	ErrStaleReference = errors.New("pid file references an unrelated process")
)
