package audio

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"sync"

	"github.com/jmylchreest/callfocus/internal/config"
)

// RingKind selects which configured tone the Ringer plays.
type RingKind string

const (
	// RingIncoming is the ring tone for an incoming call.
	RingIncoming RingKind = "incoming"
	// RingOutgoing is the ring-back tone heard while an outgoing call rings.
	RingOutgoing RingKind = "outgoing"
)

// tonePlayer is the part of Player the Ringer drives.
type tonePlayer interface {
	Loop(path string) error
	Stop()
	Preload(path string) error
	InvalidateCache(path string)
	ClearCache()
	SetVolume(volume float64)
	Close()
}

// Ringer plays the configured ring tones on demand.
type Ringer struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  tonePlayer
	watcher *Watcher
	config  *config.DaemonConfig

	// Ring kind to expanded sound path
	sounds  map[RingKind]string
	playing RingKind
}

// NewRinger creates a Ringer backed by the speaker.
func NewRinger(cfg *config.DaemonConfig, logger *slog.Logger) *Ringer {
	return newRinger(cfg, NewPlayer(logger), logger)
}

func newRinger(cfg *config.DaemonConfig, player tonePlayer, logger *slog.Logger) *Ringer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}

	r := &Ringer{
		logger: logger,
		player: player,
		config: cfg,
		sounds: make(map[RingKind]string),
	}
	r.watcher = NewWatcher(r.soundChanged, logger)
	r.loadSoundConfig()
	return r
}

// loadSoundConfig resolves the ring sounds from the configuration.
func (r *Ringer) loadSoundConfig() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.player.SetVolume(float64(r.config.Ring.Volume) / 100.0)

	r.sounds = make(map[RingKind]string)
	for _, kind := range []RingKind{RingIncoming, RingOutgoing} {
		path := r.config.SoundPath(string(kind))
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			r.logger.Warn("ring sound not found", "kind", kind, "path", path)
		}
		r.sounds[kind] = path
	}
}

// Start preloads the ring sounds and watches them for changes.
func (r *Ringer) Start(ctx context.Context) error {
	for kind, path := range r.soundPaths() {
		if err := r.player.Preload(path); err != nil {
			r.logger.Warn("failed to preload ring sound", "kind", kind, "path", path, "error", err)
		}
		r.watcher.Watch(path)
	}

	if err := r.watcher.Start(ctx); err != nil {
		return err
	}

	r.logger.Info("ringer started", "enabled", r.Enabled())
	return nil
}

// Stop silences any tone and shuts the ringer down.
func (r *Ringer) Stop() {
	r.watcher.Stop()
	r.player.Close()
	r.logger.Debug("ringer stopped")
}

// Enabled reports whether ring tones are configured to play.
func (r *Ringer) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Ring.Enabled
}

// Ring starts the tone for kind looping, replacing any tone already
// playing. It is a no-op when ringing is disabled.
func (r *Ringer) Ring(kind RingKind) error {
	r.mu.RLock()
	enabled := r.config.Ring.Enabled
	path, ok := r.sounds[kind]
	r.mu.RUnlock()

	if !enabled {
		r.logger.Debug("ringing disabled", "kind", kind)
		return nil
	}
	if !ok {
		return fmt.Errorf("no %s ring sound configured", kind)
	}

	if err := r.player.Loop(path); err != nil {
		return fmt.Errorf("failed to play %s ring: %w", kind, err)
	}

	r.mu.Lock()
	r.playing = kind
	r.mu.Unlock()
	r.logger.Debug("ringing", "kind", kind, "path", path)
	return nil
}

// Silence stops the ring tone, if any.
func (r *Ringer) Silence() {
	r.player.Stop()

	r.mu.Lock()
	kind := r.playing
	r.playing = ""
	r.mu.Unlock()

	if kind != "" {
		r.logger.Debug("ring silenced", "kind", kind)
	}
}

// Playing returns the kind of tone playing, or "" when silent.
func (r *Ringer) Playing() RingKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playing
}

// UpdateConfig applies a reloaded configuration. A tone already playing
// keeps its old sound until it is restarted.
func (r *Ringer) UpdateConfig(cfg *config.DaemonConfig) {
	for _, path := range r.soundPaths() {
		r.watcher.Unwatch(path)
	}

	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()

	r.player.ClearCache()
	r.loadSoundConfig()

	for kind, path := range r.soundPaths() {
		if err := r.player.Preload(path); err != nil {
			r.logger.Warn("failed to preload ring sound on reload", "kind", kind, "path", path, "error", err)
		}
		r.watcher.Watch(path)
	}
	r.logger.Debug("ringer config updated")
}

func (r *Ringer) soundChanged(path string) {
	r.player.InvalidateCache(path)
	if err := r.player.Preload(path); err != nil {
		r.logger.Warn("failed to reload ring sound", "path", path, "error", err)
	}
}

func (r *Ringer) soundPaths() map[RingKind]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.sounds)
}
