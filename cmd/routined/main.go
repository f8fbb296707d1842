// Package main is the CLI entry point for routined.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/routined/internal/config"
	"github.com/eliteGoblin/focusd/routined/internal/daemon"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "routined",
	Short: "Digital wellbeing daemon - routines and app limits",
	Long: `routined schedules focus routines and enforces per-app usage limits.
When a routine is active or a daily limit is exceeded, the offending app
is sent away from the foreground after a short grace period.

The daemon exposes a local control API; the management subcommands
(routines, focus, status) talk to a running daemon.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Starts the routined daemon: seeds default routines on first run, arms
triggers for every enabled routine, and serves the control API.

With --detach the daemon is spawned as a detached background process and
logs to a file in the data directory.`,
	RunE: runStart,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var focusCmd = &cobra.Command{
	Use:   "focus [on|off]",
	Short: "Show or set global focus mode",
	Long: `Focus mode blocks every non-whitelisted app unconditionally.
Without an argument, prints the current state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFocus,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the blocking exemption list",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add PACKAGE",
	Short: "Exempt a package from all blocking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient(serverAddr).AddWhitelisted(args[0]); err != nil {
			return err
		}
		fmt.Printf("Whitelisted %s\n", args[0])
		return nil
	},
}

var (
	configPath string
	detach     bool
	logFile    string
	jsonOutput bool
	serverAddr string
)

func init() {
	startCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	startCmd.Flags().BoolVar(&detach, "detach", false, "Run the daemon in the background")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Log to this file instead of the terminal")
	startCmd.Flags().MarkHidden("log-file")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:7600",
		"Daemon control API address")

	whitelistCmd.AddCommand(whitelistAddCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(routinesCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if detach {
		logPath := filepath.Join(cfg.DataDir, "routined.log")
		pid, err := daemon.StartDetached(configPath, logPath)
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Printf("routined started (pid %d), logging to %s\n", pid, logPath)
		return nil
	}

	logger := createLogger(logFile)
	defer func() { _ = logger.Sync() }()

	core, err := daemon.NewCore(cfg, Version, logger)
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

	if configPath != "" {
		watcher := config.NewWatcher(configPath, core.ApplyConfig, logger.Named("config"))
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	return core.Run(ctx)
}

func runFocus(cmd *cobra.Command, args []string) error {
	client := newClient(serverAddr)

	if len(args) == 0 {
		enabled, err := client.FocusMode()
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("Focus mode: ON")
		} else {
			fmt.Println("Focus mode: OFF")
		}
		return nil
	}

	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}
	if err := client.SetFocusMode(enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Println("Focus mode enabled. Everything not whitelisted is blocked.")
	} else {
		fmt.Println("Focus mode disabled.")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := newClient(serverAddr).Status()
	if err != nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'routined start' to launch the daemon.")
		return nil
	}

	fmt.Println("\n=== routined Status ===")
	fmt.Println("Status: RUNNING")
	fmt.Printf("Version: %s\n", st.Version)
	fmt.Printf("Uptime: %s\n", time.Since(st.StartedAt).Round(time.Second))
	if st.ActiveRoutine != "" {
		fmt.Printf("Active routine: %s\n", st.ActiveRoutine)
	} else {
		fmt.Println("Active routine: none")
	}
	if st.FocusMode {
		fmt.Println("Focus mode: ON")
	} else {
		fmt.Println("Focus mode: OFF")
	}
	fmt.Printf("Routines: %d\n", st.RoutineCount)
	fmt.Printf("Data dir: %s\n", st.DataDir)
	fmt.Println("=======================")
	return nil
}

func createLogger(logFile string) *zap.Logger {
	if logFile == "" {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logFile}
	cfg.ErrorOutputPaths = []string{logFile}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("routined %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
