package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedFormat is returned for sound files that cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Player plays ring tones through the speaker.
// At most one looped tone plays at a time.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Volume control (0.0 to 1.0)
	volume float64

	initialized bool
	sampleRate  beep.SampleRate

	// current is the looped tone playing, nil when silent
	current *beep.Ctrl

	cache      map[string]*beep.Buffer
	cacheMutex sync.RWMutex
	loads      singleflight.Group
}

// NewPlayer creates a new audio player.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		logger:     logger,
		volume:     1.0,
		sampleRate: beep.SampleRate(44100),
		cache:      make(map[string]*beep.Buffer),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
// It applies to tones started after the call.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = math.Max(0, math.Min(1, volume))
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Loop starts path playing until Stop is called, replacing any tone
// already playing.
func (p *Player) Loop(path string) error {
	buffer, err := p.buffer(path)
	if err != nil {
		return err
	}

	looped := beep.Loop(-1, buffer.Streamer(0, buffer.Len()))
	ctrl := &beep.Ctrl{Streamer: p.shape(looped, buffer.Format().SampleRate)}

	// A tone displaced by a concurrent Loop before it reached the speaker
	// has no streamer left and is dropped on its first pull.
	p.replace(ctrl)
	speaker.Play(ctrl)
	p.logger.Debug("looping tone", "path", path)
	return nil
}

// Stop silences the looped tone, if any.
func (p *Player) Stop() {
	if p.replace(nil) {
		p.logger.Debug("tone stopped")
	}
}

// replace makes ctrl the current tone and silences the one it displaces.
// It reports whether a tone was displaced.
func (p *Player) replace(ctrl *beep.Ctrl) bool {
	p.mu.Lock()
	prev := p.current
	p.current = ctrl
	p.mu.Unlock()

	if prev == nil {
		return false
	}

	// A Ctrl without a streamer drains, and the speaker drops it.
	speaker.Lock()
	prev.Streamer = nil
	speaker.Unlock()
	return true
}

// Playing reports whether a looped tone is playing.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Preload decodes path into the cache.
func (p *Player) Preload(path string) error {
	if _, err := p.buffer(path); err != nil {
		return err
	}
	p.logger.Debug("preloaded sound", "path", path)
	return nil
}

// InvalidateCache removes a specific path from the cache.
func (p *Player) InvalidateCache(path string) {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	delete(p.cache, path)
}

// ClearCache clears the sound cache.
func (p *Player) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.cache = make(map[string]*beep.Buffer)
}

// Close stops all playback and releases the speaker.
func (p *Player) Close() {
	p.Stop()

	p.mu.Lock()
	if p.initialized {
		speaker.Close()
		p.initialized = false
	}
	p.mu.Unlock()

	p.ClearCache()
	p.logger.Debug("audio player closed")
}

// buffer returns the decoded sound for path, loading it on first use.
func (p *Player) buffer(path string) (*beep.Buffer, error) {
	if path == "" {
		return nil, errors.New("no sound file configured")
	}

	p.cacheMutex.RLock()
	cached, ok := p.cache[path]
	p.cacheMutex.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := p.loads.Do(path, func() (any, error) {
		// re-check, a concurrent load may have finished
		p.cacheMutex.RLock()
		cached, ok := p.cache[path]
		p.cacheMutex.RUnlock()
		if ok {
			return cached, nil
		}

		buffer, err := p.loadSound(path)
		if err != nil {
			return nil, err
		}

		p.cacheMutex.Lock()
		p.cache[path] = buffer
		p.cacheMutex.Unlock()
		return buffer, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*beep.Buffer), nil
}

// loadSound decodes a sound file into a buffer.
func (p *Player) loadSound(path string) (*beep.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var decode func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)
	switch ext {
	case ".wav":
		decode = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }
	case ".ogg", ".oga":
		decode = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) }
	case ".mp3":
		decode = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound %s: %w", path, err)
	}
	defer func() { _ = streamer.Close() }()

	if err := p.ensureInitialized(format.SampleRate); err != nil {
		return nil, err
	}

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// ensureInitialized initializes the speaker if not already done.
func (p *Player) ensureInitialized(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

// shape resamples to the speaker rate and applies the volume.
func (p *Player) shape(s beep.Streamer, from beep.SampleRate) beep.Streamer {
	p.mu.Lock()
	volume := p.volume
	to := p.sampleRate
	p.mu.Unlock()

	if from != to {
		s = beep.Resample(4, from, to, s)
	}
	if volume < 1.0 {
		s = &effects.Volume{
			Streamer: s,
			Base:     2,
			Volume:   volumeToExponent(volume),
			Silent:   volume == 0,
		}
	}
	return s
}

// volumeToExponent converts a linear volume (0-1) to a base-2 exponent
// for effects.Volume: 0.5 is one step down, 0.25 two.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}
