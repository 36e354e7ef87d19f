package main

import (
	"net"
	"strings"
	"testing"
)

func TestBuildRootWiresSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{"start": false, "stop": false, "status": false, "serve": false, "supervise": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestHiddenWorkerCommands(t *testing.T) {
	root := buildRoot()
	for _, cmd := range root.Commands() {
		switch cmd.Name() {
		case "serve", "supervise":
			if !cmd.Hidden {
				t.Fatalf("%q should be hidden", cmd.Name())
			}
		case "start", "stop", "status":
			if cmd.Hidden {
				t.Fatalf("%q should be visible", cmd.Name())
			}
		}
	}
}

func TestStartFlags(t *testing.T) {
	root := buildRoot()
	start, _, err := root.Find([]string{"start"})
	if err != nil {
		t.Fatalf("find start: %v", err)
	}
	for _, flag := range []string{"foreground", "reload"} {
		if start.Flags().Lookup(flag) == nil {
			t.Fatalf("start is missing --%s", flag)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("root is missing --config")
	}
}

func TestCheckPortAvailableFreePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	if err := checkPortAvailable(addr); err != nil {
		t.Fatalf("free port reported busy: %v", err)
	}
}

func TestCheckPortAvailableBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	err = checkPortAvailable(ln.Addr().String())
	if err == nil {
		t.Fatalf("busy port reported free")
	}
	if !strings.Contains(err.Error(), "in use") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
