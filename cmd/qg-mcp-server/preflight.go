package main

import (
	"fmt"
	"net"
	"strconv"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// checkPortAvailable verifies the listen address can be bound right now.
// When it cannot, the error names the process occupying the port if the
// connection table reveals it.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		_ = ln.Close()
		return nil
	}
	_, portStr, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return fmt.Errorf("port check %s: %w", addr, err)
	}
	if occupant := portOccupant(portStr); occupant != "" {
		return fmt.Errorf("port %s is in use by %s", portStr, occupant)
	}
	return fmt.Errorf("port %s is in use", portStr)
}

// portOccupant scans the TCP connection table for a listener on port and
// returns "name (pid N)" when one is found.
func portOccupant(portStr string) string {
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return ""
	}
	conns, err := gnet.Connections("tcp")
	if err != nil {
		return ""
	}
	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) || conn.Pid <= 0 {
			continue
		}
		name := "unknown"
		if proc, err := process.NewProcess(conn.Pid); err == nil {
			if n, err := proc.Name(); err == nil {
				name = n
			}
		}
		return fmt.Sprintf("%s (pid %d)", name, conn.Pid)
	}
	return ""
}
