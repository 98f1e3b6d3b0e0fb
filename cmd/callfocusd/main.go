// Package main is the entry point for the callfocusd audio focus daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/callfocus/internal/audio"
	"github.com/jmylchreest/callfocus/internal/config"
	"github.com/jmylchreest/callfocus/internal/daemon"
	"github.com/jmylchreest/callfocus/internal/dbus"
	"github.com/jmylchreest/callfocus/internal/focus"
	"github.com/jmylchreest/callfocus/internal/model"
	"github.com/jmylchreest/callfocus/internal/platform"
)

var (
	// Build-time variables
	version = "dev"
)

// errBusLost is returned when the session bus connection drops.
var errBusLost = errors.New("session bus connection lost")

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dryRun := flag.Bool("dry-run", false, "Record native operations instead of ringing, pausing media or showing notifications")
	configPath := flag.String("config", "", "Path to the daemon config file (default: $XDG_CONFIG_HOME/callfocus/callfocusd.toml)")
	flag.Parse()

	if *showVersion {
		fmt.Println("callfocusd version", version)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			slog.Error("failed to get config path", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadDaemonConfigFrom(path)
	if err != nil {
		slog.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	level := &slog.LevelVar{}
	setLevel(level, cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(logger, level, cfg, path, *dryRun); err != nil {
		logger.Error("callfocusd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("callfocusd stopped")
}

// run wires the daemon together and blocks until a signal arrives or the
// session bus goes away.
func run(logger *slog.Logger, level *slog.LevelVar, cfg *config.DaemonConfig, path string, dryRun bool) error {
	logger.Info("starting callfocusd", "version", version, "config", path, "dry_run", dryRun)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := godbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Internal notifications go through the notification server even in dry-run
	notifications := dbus.NewNotificationClient(conn, logger)
	defer notifications.Close()

	internalNotifier := daemon.NewInternalNotifier(notifications.Notify, logger)

	ringer := audio.NewRinger(cfg, logger)
	if !dryRun {
		if err := ringer.Start(ctx); err != nil {
			logger.Warn("failed to start ringer", "error", err)
			internalNotifier.NotifyAudioError(err)
		}
	}
	defer ringer.Stop()

	var (
		native  focus.Collaborator
		desktop *platform.Desktop
	)
	if dryRun {
		native = platform.NewRecorder(logger)
	} else {
		desktop = newDesktop(conn, cfg, ringer, notifications, logger)
		native = desktop
	}

	arbiter := focus.NewArbiter(native, logger)
	arbiter.SetNativeTimeout(cfg.Focus.NativeTimeout.Duration())

	history := daemon.NewHistory(cfg.History.Length)
	arbiter.Subscribe(history.Record)

	server := dbus.NewServer(arbiter, history.Transitions, logger)
	server.SetWaitTimeout(cfg.Focus.NativeTimeout.Duration() + time.Second)
	arbiter.Subscribe(func(state model.State, t model.Transition) {
		if err := server.EmitFocusChanged(state); err != nil {
			logger.Warn("failed to emit focus change", "request_id", t.RequestID, "error", err)
		}
	})

	if desktop != nil {
		// A user closing the call notification counts as a dismiss
		desktop.SetDismissedHandler(func() {
			arbiter.DismissCallNotification()
		})
		if err := notifications.OnClosed(desktop.HandleNotificationClosed); err != nil {
			logger.Warn("failed to watch notification closes", "error", err)
		}
	}

	if err := server.Start(conn); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("error stopping D-Bus server", "error", err)
		}
	}()

	busName := cfg.Focus.BusName
	configWatcher, err := daemon.NewConfigWatcher(path, logger)
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
	} else {
		configWatcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			if newConfig.Focus.BusName != busName {
				logger.Warn("focus bus name changed, restart callfocusd to apply",
					"current", busName, "configured", newConfig.Focus.BusName)
			}

			setLevel(level, newConfig.Log.Level)
			ringer.UpdateConfig(newConfig)
			if desktop != nil {
				desktop.UpdateConfig(newConfig)
			}
			arbiter.SetNativeTimeout(newConfig.Focus.NativeTimeout.Duration())
			server.SetWaitTimeout(newConfig.Focus.NativeTimeout.Duration() + time.Second)
			history.SetLimit(newConfig.History.Length)

			internalNotifier.NotifyConfigReloaded()
		})
		configWatcher.SetErrorCallback(func(err error) {
			internalNotifier.NotifyConfigError(err)
		})
		if err := configWatcher.Start(cfg); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
		defer func() { _ = configWatcher.Stop() }()
	}

	logger.Info("callfocusd ready", "dbus_interface", dbus.Interface, "object_path", dbus.ObjectPath)
	internalNotifier.NotifyStartup(version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-conn.Context().Done():
			return errBusLost
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return nil
	})
	waitErr := g.Wait()

	// Release focus and let in-flight commands settle before tearing down.
	shutdownTimeout := cfg.Focus.NativeTimeout.Duration()
	if configWatcher != nil {
		shutdownTimeout = configWatcher.CurrentConfig().Focus.NativeTimeout.Duration()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout+time.Second)
	defer shutdownCancel()
	if err := arbiter.Close(shutdownCtx); err != nil {
		logger.Warn("error closing arbiter", "error", err)
	}

	return waitErr
}

// newDesktop builds the native collaborator from the session services.
func newDesktop(conn *godbus.Conn, cfg *config.DaemonConfig, ringer *audio.Ringer, notifications *dbus.NotificationClient, logger *slog.Logger) *platform.Desktop {
	opts := platform.DesktopOptions{
		Config:   cfg,
		Ringer:   ringer,
		Notifier: notifications,
		Logger:   logger,
	}
	if cfg.Focus.BusName != "" {
		opts.Token = dbus.NewNameToken(conn, cfg.Focus.BusName, logger)
	}
	// Always wired, pause_media may be switched on by a reload
	opts.Media = dbus.NewMediaController(conn, logger)
	return platform.NewDesktop(opts)
}

// setLevel applies a configured log level, keeping the current one when
// the name is not recognised.
func setLevel(level *slog.LevelVar, name string) {
	parsed, err := config.ParseLogLevel(name)
	if err != nil {
		slog.Warn("invalid log level, keeping current", "level", name, "error", err)
		return
	}
	level.Set(parsed)
}
