package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startFlags := &StartFlags{}
	statusFlags := &StatusFlags{}
	serveFlags := &ServeFlags{}

	launcher := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(launcher, startFlags),
		createStopCommand(launcher),
		createStatusCommand(launcher, statusFlags),
		createServeCommand(launcher, serveFlags),
		createSuperviseCommand(launcher),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "qg-mcp-server",
		Short: "Lifecycle manager for the Teradata QueryGrid MCP server",
		Long: `qg-mcp-server starts, stops, and inspects the QueryGrid MCP server.

Examples:
  qg-mcp-server start                      # background (default)
  qg-mcp-server start --foreground         # attached to this terminal
  qg-mcp-server start --foreground --reload # restart on config changes
  qg-mcp-server status
  qg-mcp-server stop`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "config.yaml", "path to YAML config file")
	return root
}

func createStartCommand(launcher command, startFlags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		Long: `Start the server in the background (default) or in the foreground.
--reload requires --foreground and restarts the server whenever the config
file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return launcher.Start(cmd, *startFlags)
		},
	}
	cmd.Flags().BoolVar(&startFlags.Foreground, "foreground", false, "run attached to this terminal")
	cmd.Flags().BoolVar(&startFlags.Reload, "reload", false, "restart on config changes (requires --foreground)")
	cmd.Flags().StringVar(&startFlags.Host, "host", "", "override bind host")
	cmd.Flags().IntVar(&startFlags.Port, "port", 0, "override bind port")
	cmd.Flags().StringVar(&startFlags.LogDir, "log-dir", "", "override log directory")
	cmd.Flags().StringVar(&startFlags.LogLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().StringVar(&startFlags.QGMHost, "qgm-host", "", "QueryGrid Manager host")
	cmd.Flags().IntVar(&startFlags.QGMPort, "qgm-port", 0, "QueryGrid Manager port")
	cmd.Flags().StringVar(&startFlags.QGMUsername, "qgm-username", "", "QueryGrid Manager username")
	cmd.Flags().StringVar(&startFlags.QGMPassword, "qgm-password", "", "QueryGrid Manager password")
	cmd.Flags().BoolVar(&startFlags.QGMVerifySSL, "qgm-verify-ssl", true, "verify the QueryGrid Manager TLS certificate")
	return cmd
}

func createStopCommand(launcher command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the server and all of its child processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return launcher.Stop()
		},
	}
}

func createStatusCommand(launcher command, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the server is running and healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return launcher.Status(cmd.Context(), *statusFlags)
		},
	}
	cmd.Flags().IntVar(&statusFlags.History, "history", 0, "also print the last N lifecycle events")
	return cmd
}

func createServeCommand(launcher command, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the server process in this process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return launcher.Serve(cmd.Context(), *serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Host, "host", "", "override bind host")
	cmd.Flags().IntVar(&serveFlags.Port, "port", 0, "override bind port")
	return cmd
}

func createSuperviseCommand(launcher command) *cobra.Command {
	return &cobra.Command{
		Use:    "supervise",
		Short:  "Run the server under a config-watching supervisor",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return launcher.Supervise(cmd.Context())
		},
	}
}
