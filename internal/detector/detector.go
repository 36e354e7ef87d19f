package detector

import (
	"fmt"
	"os"

	"github.com/Teradata/teradata-qg-mcp-server/internal/lifecycle"
)

// Detector is the liveness strategy consumed by lifecycle.Manager.Status.
// The implementations here cover the PID file, the process-table
// signature, and a bare PID.
type Detector = lifecycle.Detector

// PIDFileDetector detects the server via its PID file. A recorded PID only
// counts as alive when the process exists, its command line carries the
// expected signature, and its start time matches the file's metadata, so a
// recycled PID never reads as a running server.
type PIDFileDetector struct {
	Store     lifecycle.Store
	Table     lifecycle.Table
	Signature string
}

func (d PIDFileDetector) Alive() (bool, error) {
	rec, err := d.Store.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return lifecycle.Matches(d.Table, rec, d.Signature), nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.Store.Path }

// SignatureDetector detects the server by scanning the process table for
// its command-line signature. Used as the fallback when no PID file exists.
type SignatureDetector struct {
	Table     lifecycle.Table
	Signature string
}

func (d SignatureDetector) Alive() (bool, error) {
	pids, err := d.Table.FindBySignature(d.Signature)
	if err != nil {
		return false, err
	}
	for _, pid := range pids {
		if pid != os.Getpid() {
			return true, nil
		}
	}
	return false, nil
}

func (d SignatureDetector) Describe() string { return "signature:" + d.Signature }

// PIDDetector detects by a bare PID number.
type PIDDetector struct {
	Table lifecycle.Table
	PID   int
}

func (d PIDDetector) Alive() (bool, error) { return d.Table.Alive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }
