package lifecycle

import (
	"fmt"
	"log/slog"
	"time"
)

// Descendants returns every direct and transitive child of root, parents
// before their children. The tree is recomputed from the live process table
// on each call; nothing is cached.
func Descendants(t Table, root int) []int {
	var out []int
	queue := []int{root}
	seen := map[int]bool{root: true}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		kids, err := t.Children(pid)
		if err != nil {
			continue
		}
		for _, kid := range kids {
			if seen[kid] {
				continue
			}
			seen[kid] = true
			out = append(out, kid)
			queue = append(queue, kid)
		}
	}
	return out
}

// TerminateTree stops root and all of its descendants, leaf-first with the
// root strictly last. It returns the number of descendants found.
func TerminateTree(t Table, root int, grace, killWait time.Duration, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return terminateTree(t, root, grace, killWait, logger)
}

// terminateTree stops root and all of its descendants. Descendants are
// signaled deepest-first and confirmed gone (escalating to a forceful kill
// when needed) strictly before the root is touched, so no descendant
// outlives this call as a reparented orphan. It returns the number of
// descendants found.
func terminateTree(t Table, root int, grace, killWait time.Duration, logger *slog.Logger) (int, error) {
	desc := Descendants(t, root)
	// Leaf-first: reverse of the parents-before-children walk order.
	for i := len(desc) - 1; i >= 0; i-- {
		if err := terminateOne(t, desc[i], grace, killWait, logger); err != nil {
			return len(desc), fmt.Errorf("descendant %d: %w", desc[i], err)
		}
	}
	if err := terminateOne(t, root, grace, killWait, logger); err != nil {
		return len(desc), fmt.Errorf("root %d: %w", root, err)
	}
	return len(desc), nil
}

// terminateOne sends the polite signal, waits up to grace, escalates to a
// forceful kill, and waits up to killWait before giving up.
func terminateOne(t Table, pid int, grace, killWait time.Duration, logger *slog.Logger) error {
	if !t.Alive(pid) {
		return nil
	}
	if err := t.Terminate(pid); err != nil && t.Alive(pid) {
		logger.Warn("polite termination signal failed", "pid", pid, "error", err)
	}
	if waitGone(t, pid, grace) {
		return nil
	}
	logger.Warn("process did not exit in time, escalating", "pid", pid, "grace", grace)
	if err := t.Kill(pid); err != nil && t.Alive(pid) {
		logger.Warn("forceful kill failed", "pid", pid, "error", err)
	}
	if waitGone(t, pid, killWait) {
		return nil
	}
	return ErrTerminationFailure
}

// waitGone polls until pid leaves the process table or timeout elapses.
func waitGone(t Table, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !t.Alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
