// Package main provides the CLI entrypoint for callfocus.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/callfocus/internal/config"
	"github.com/jmylchreest/callfocus/internal/dbus"
	"github.com/jmylchreest/callfocus/internal/focus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		quiet      bool
		configPath string
		timeout    time.Duration
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "callfocus",
	Short: "Control the call audio focus daemon",
	Long: `callfocus drives callfocusd, the session daemon arbitrating call audio focus.

Commands map one-to-one onto the daemon's command surface. Each command
waits for the daemon to apply it and prints the request id on success.

Running callfocus without a subcommand shows the current focus state.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args)
	},
}

// Execute runs the root command and exits 1 on any error. Invalid
// arguments also print the usage of the failing command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, focus.ErrInvalidArgument) && cmd != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprint(os.Stderr, cmd.UsageString())
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.quiet, "quiet", "q", false,
		"Suppress output, report through the exit code only")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/callfocus/config.toml)")
	rootCmd.PersistentFlags().DurationVar(&globalOpts.timeout, "timeout", 0,
		"How long to wait for the daemon (default from config, 10s)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return invalidArgument(err)
	})
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// invalidArgument marks err as a usage error.
func invalidArgument(err error) error {
	if errors.Is(err, focus.ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %w", focus.ErrInvalidArgument, err)
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return invalidArgument(err)
		}
		return nil
	}
}

// maximumArgs is cobra.MaximumNArgs reporting a usage error.
func maximumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return invalidArgument(err)
		}
		return nil
	}
}

// clientTimeout returns the --timeout flag or the configured timeout.
func clientTimeout() time.Duration {
	if globalOpts.timeout > 0 {
		return globalOpts.timeout
	}
	if cfg != nil && cfg.Client.Timeout > 0 {
		return cfg.Client.Timeout.Duration()
	}
	return config.DefaultClientTimeout
}

// withClient connects to the daemon and calls fn with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *dbus.Client) error) error {
	client, err := dbus.Connect(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout())
	defer cancel()

	return fn(ctx, client)
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}
