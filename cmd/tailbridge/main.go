// Package main is the CLI entry point for tailbridge.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pars5555/tailbridge/internal/daemon"
	"github.com/pars5555/tailbridge/internal/infra"
	"github.com/pars5555/tailbridge/internal/ipc"
	"github.com/pars5555/tailbridge/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	stateDir        string
	socketPath      string
	eventSocketPath string
	clientBin       string
	workers         int
	allowLANAccess  bool
	packageName     string
	exitNodeID      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tailbridge",
	Short: "Control bridge for the local VPN client",
	Long: `tailbridge lets other processes on this machine control the local VPN
client: connect, disconnect, select an exit node, and manage the list of
applications whose traffic bypasses the tunnel.

The daemon exposes a request/response socket and a fire-and-forget event
socket; the other subcommands are thin clients for those sockets.`,
	Version: Version,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the bridge daemon",
	Long: `Runs the bridge in the foreground: opens the deny-list store, starts the
job queue, and listens on both control sockets until interrupted.`,
	RunE: runDaemon,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <method> [arg]",
	Short: "Send one request/response command to the daemon",
	Long: `Sends a single command and prints the result.

Methods: connect_vpn, disconnect_vpn, use_exit_node, disallow_app, allow_app.
use_exit_node with an empty arg clears the current selection.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDispatch,
}

var queryCmd = &cobra.Command{
	Use:   "query <resource>",
	Short: "Read the daemon's query surface",
	Long: `Prints a tabular resource. Resources: exit_node, disallowed_apps.
Zero rows means nothing is selected / the set is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var sendCmd = &cobra.Command{
	Use:   "send <event>",
	Short: "Fire one event at the daemon (no response)",
	Long: `Fires a single fire-and-forget event.

Events: CONNECT_VPN, DISCONNECT_VPN, USE_EXIT_NODE, DISALLOW_APP, ALLOW_APP,
GET_EXIT_NODE, GET_DISALLOWED_APPS. Results of the GET_* events show up in
the daemon log, not here.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the daemon is running",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tailbridge %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	},
}

func init() {
	defaults := daemon.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaults.StateDir, "State directory (store, key, logs)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Request/response socket path (default <state-dir>/bridge.sock)")
	rootCmd.PersistentFlags().StringVar(&eventSocketPath, "event-socket", "", "Event socket path (default <state-dir>/events.sock)")

	daemonCmd.Flags().StringVar(&clientBin, "client", defaults.ClientBin, "VPN client binary")
	daemonCmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Job queue worker count")

	dispatchCmd.Flags().BoolVar(&allowLANAccess, "allow-lan-access", false, "Allow LAN access while using an exit node")

	sendCmd.Flags().StringVar(&packageName, "package", "", "Package name extra for DISALLOW_APP/ALLOW_APP")
	sendCmd.Flags().StringVar(&exitNodeID, "exit-node", "", "Exit node extra for USE_EXIT_NODE")
	sendCmd.Flags().BoolVar(&allowLANAccess, "allow-lan-access", false, "Allow LAN access extra for USE_EXIT_NODE")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolvePaths() (string, string) {
	dir := infra.ExpandHome(stateDir)
	sock := socketPath
	if sock == "" {
		sock = filepath.Join(dir, "bridge.sock")
	}
	eventSock := eventSocketPath
	if eventSock == "" {
		eventSock = filepath.Join(dir, "events.sock")
	}
	return sock, eventSock
}

func newClient() *ipc.Client {
	sock, eventSock := resolvePaths()
	return ipc.NewClient(sock, eventSock)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dir := infra.ExpandHome(stateDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	logger := createLogger(dir)
	defer func() { _ = logger.Sync() }()

	sock, eventSock := resolvePaths()
	config := daemon.Config{
		StateDir:        dir,
		SocketPath:      sock,
		EventSocketPath: eventSock,
		ClientBin:       clientBin,
		Workers:         workers,
		PollInterval:    10 * time.Second,
		Version:         Version,
	}

	bridge, err := daemon.NewBridge(config, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return bridge.Run(ctx)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	method := args[0]
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	var extras map[string]interface{}
	if method == usecase.MethodUseExitNode {
		extras = map[string]interface{}{usecase.ExtraAllowLANAccess: allowLANAccess}
	}

	resp, err := newClient().Call(ipc.Request{Method: method, Arg: arg, Extras: extras})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("dispatch failed: %s", resp.Error)
	}

	fmt.Println("accepted")
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Call(ipc.Request{Method: ipc.MethodQuery, Arg: args[0]})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("query failed: %s", resp.Error)
	}

	var table ipc.TableResult
	if err := json.Unmarshal(resp.Result, &table); err != nil {
		return fmt.Errorf("invalid query result: %w", err)
	}

	fmt.Println(strings.Join(table.Columns, "\t"))
	for _, row := range table.Rows {
		fmt.Println(strings.Join(row, "\t"))
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	extras := map[string]interface{}{}
	if packageName != "" {
		extras[usecase.EventExtraPackageName] = packageName
	}
	if exitNodeID != "" {
		extras[usecase.EventExtraExitNode] = exitNodeID
	}
	if cmd.Flags().Changed("allow-lan-access") {
		extras[usecase.EventExtraAllowLANAccess] = allowLANAccess
	}

	if err := newClient().Send(ipc.Event{Event: args[0], Extras: extras}); err != nil {
		return err
	}

	fmt.Println("sent")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Call(ipc.Request{Method: ipc.MethodPing})
	if err != nil {
		fmt.Println("Status: NOT RUNNING")
		return nil
	}

	var ping ipc.PingResult
	if err := json.Unmarshal(resp.Result, &ping); err != nil {
		return fmt.Errorf("invalid ping result: %w", err)
	}

	fmt.Printf("Status: RUNNING (version %s, pid %d)\n", ping.Version, ping.PID)

	// Best-effort exit-node display; the daemon may not have polled yet.
	if resp, err := newClient().Call(ipc.Request{Method: ipc.MethodQuery, Arg: usecase.ResourceExitNode}); err == nil && resp.Error == "" {
		var table ipc.TableResult
		if err := json.Unmarshal(resp.Result, &table); err == nil {
			if len(table.Rows) == 0 {
				fmt.Println("Exit node: none")
			} else {
				row := table.Rows[0]
				fmt.Printf("Exit node: %s (%s), allow LAN access: %s\n", row[0], row[1], row[2])
			}
		}
	}
	return nil
}

func createLogger(stateDir string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{filepath.Join(stateDir, "tailbridge.log"), "stderr"}
	config.ErrorOutputPaths = []string{filepath.Join(stateDir, "tailbridge.error.log"), "stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
