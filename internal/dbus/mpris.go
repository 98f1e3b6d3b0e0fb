package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// MPRIS coordinates.
const (
	mprisPrefix    = "org.mpris.MediaPlayer2."
	mprisPath      = "/org/mpris/MediaPlayer2"
	mprisPlayer    = "org.mpris.MediaPlayer2.Player"
	propertiesGet  = "org.freedesktop.DBus.Properties.Get"
	listNamesCall  = "org.freedesktop.DBus.ListNames"
	playbackStatus = "PlaybackStatus"
)

// PlaybackStatus is an MPRIS player's PlaybackStatus property.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

// parsePlaybackStatus reads a PlaybackStatus property value.
// Anything unexpected reads as stopped.
func parsePlaybackStatus(v dbus.Variant) PlaybackStatus {
	s, ok := v.Value().(string)
	if !ok {
		return StatusStopped
	}
	switch PlaybackStatus(s) {
	case StatusPlaying, StatusPaused:
		return PlaybackStatus(s)
	default:
		return StatusStopped
	}
}

// mediaPlayers filters bus names down to MPRIS players, sorted.
func mediaPlayers(names []string) []string {
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) && len(name) > len(mprisPrefix) {
			players = append(players, name)
		}
	}
	slices.Sort(players)
	return players
}

// MediaController pauses media players while a call holds focus and
// resumes the ones it paused afterwards.
type MediaController struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu     sync.Mutex
	paused []string
}

// NewMediaController creates a controller on conn.
func NewMediaController(conn *dbus.Conn, logger *slog.Logger) *MediaController {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaController{conn: conn, logger: logger}
}

// Players lists the MPRIS players on the bus.
func (m *MediaController) Players(ctx context.Context) ([]string, error) {
	var names []string
	if err := m.conn.BusObject().CallWithContext(ctx, listNamesCall, 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}
	return mediaPlayers(names), nil
}

// Status returns the playback status of player.
func (m *MediaController) Status(ctx context.Context, player string) (PlaybackStatus, error) {
	var v dbus.Variant
	err := m.conn.Object(player, mprisPath).
		CallWithContext(ctx, propertiesGet, 0, mprisPlayer, playbackStatus).
		Store(&v)
	if err != nil {
		return StatusStopped, fmt.Errorf("failed to read %s playback status: %w", player, err)
	}
	return parsePlaybackStatus(v), nil
}

// PauseAll pauses every playing player and remembers them for Resume.
// Players already remembered stay remembered. Players that fail are skipped.
func (m *MediaController) PauseAll(ctx context.Context) error {
	players, err := m.Players(ctx)
	if err != nil {
		return err
	}

	for _, player := range players {
		status, err := m.Status(ctx, player)
		if err != nil {
			m.logger.Debug("skipping media player", "player", player, "error", err)
			continue
		}
		if status != StatusPlaying {
			continue
		}
		if err := m.call(ctx, player, "Pause"); err != nil {
			m.logger.Warn("failed to pause media player", "player", player, "error", err)
			continue
		}

		m.mu.Lock()
		if !slices.Contains(m.paused, player) {
			m.paused = append(m.paused, player)
		}
		m.mu.Unlock()
		m.logger.Debug("paused media player", "player", player)
	}
	return nil
}

// Resume restarts the players PauseAll paused.
func (m *MediaController) Resume(ctx context.Context) {
	m.mu.Lock()
	paused := m.paused
	m.paused = nil
	m.mu.Unlock()

	for _, player := range paused {
		if err := m.call(ctx, player, "Play"); err != nil {
			m.logger.Warn("failed to resume media player", "player", player, "error", err)
			continue
		}
		m.logger.Debug("resumed media player", "player", player)
	}
}

// Paused returns the players waiting to be resumed.
func (m *MediaController) Paused() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.paused)
}

func (m *MediaController) call(ctx context.Context, player, method string) error {
	return m.conn.Object(player, mprisPath).CallWithContext(ctx, mprisPlayer+"."+method, 0).Err
}
