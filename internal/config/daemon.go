package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Plain integers are milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d).Milliseconds())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultFocusBusName is the session bus name claimed while focus is held.
const DefaultFocusBusName = "io.github.jmylchreest.CallFocus.Holder"

// DaemonConfig is the configuration for callfocusd.
// Loaded from ~/.config/callfocus/callfocusd.toml
type DaemonConfig struct {
	Focus        FocusConfig        `toml:"focus"`
	Ring         RingConfig         `toml:"ring"`
	Notification NotificationConfig `toml:"notification"`
	History      HistoryConfig      `toml:"history"`
	Log          LogConfig          `toml:"log"`
}

// FocusConfig contains focus arbitration settings.
type FocusConfig struct {
	NativeTimeout Duration `toml:"native_timeout"` // Bound on every native call
	BusName       string   `toml:"bus_name"`       // Claimed while focus is held; "" disables
	PauseMedia    bool     `toml:"pause_media"`    // Pause MPRIS players during call focus
}

// RingConfig contains ring tone settings.
type RingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Volume   int    `toml:"volume"`   // 0-100
	Incoming string `toml:"incoming"` // Ring tone for incoming calls
	Outgoing string `toml:"outgoing"` // Ring-back tone for outgoing calls
}

// NotificationConfig contains call notification settings.
type NotificationConfig struct {
	AppName string   `toml:"app_name"`
	Icon    string   `toml:"icon"`
	Body    string   `toml:"body"`
	Timeout Duration `toml:"timeout"` // "0" keeps the notification until dismissed
}

// HistoryConfig contains transition history settings.
type HistoryConfig struct {
	Length int `toml:"length"` // Transitions kept in memory
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Focus: FocusConfig{
			NativeTimeout: Duration(5 * time.Second),
			BusName:       DefaultFocusBusName,
			PauseMedia:    true,
		},
		Ring: RingConfig{
			Enabled:  true,
			Volume:   80,
			Incoming: "~/.local/share/sounds/callfocus/ringtone.ogg",
			Outgoing: "~/.local/share/sounds/callfocus/ringback.ogg",
		},
		Notification: NotificationConfig{
			AppName: "callfocus",
			Icon:    "call-start",
			Body:    "Incoming voice call",
			Timeout: Duration(0),
		},
		History: HistoryConfig{
			Length: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "callfocus", "callfocusd.toml"), nil
}

// LoadDaemonConfigFrom loads the daemon configuration from path.
func LoadDaemonConfigFrom(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Focus.NativeTimeout.Duration() <= 0 {
		return fmt.Errorf("native_timeout must be positive, got %s", c.Focus.NativeTimeout.Duration())
	}
	if c.Focus.BusName != "" && strings.Count(c.Focus.BusName, ".") < 1 {
		return fmt.Errorf("invalid bus_name %q", c.Focus.BusName)
	}

	if c.Ring.Volume < 0 || c.Ring.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Ring.Volume)
	}

	if c.Notification.Timeout.Duration() < 0 {
		return fmt.Errorf("notification timeout cannot be negative")
	}

	if c.History.Length < 0 || c.History.Length > 10000 {
		return fmt.Errorf("history length must be between 0 and 10000, got %d", c.History.Length)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// SoundPath returns the expanded sound path for a ring kind ("incoming" or "outgoing").
func (c *DaemonConfig) SoundPath(kind string) string {
	switch kind {
	case "incoming":
		return ExpandPath(c.Ring.Incoming)
	case "outgoing":
		return ExpandPath(c.Ring.Outgoing)
	default:
		return ""
	}
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", level)
	}
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
