package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callfocus/internal/config"
)

type fakePlayer struct {
	mu          sync.Mutex
	looped      []string
	stops       int
	preloaded   []string
	invalidated []string
	volume      float64
	loopErr     error
	closed      bool
}

func (f *fakePlayer) Loop(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loopErr != nil {
		return f.loopErr
	}
	f.looped = append(f.looped, path)
	return nil
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) Preload(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preloaded = append(f.preloaded, path)
	return nil
}

func (f *fakePlayer) InvalidateCache(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, path)
}

func (f *fakePlayer) ClearCache() {}

func (f *fakePlayer) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
}

func (f *fakePlayer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func testRingConfig(t *testing.T) *config.DaemonConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultDaemonConfig()
	cfg.Ring.Incoming = filepath.Join(dir, "ring.ogg")
	cfg.Ring.Outgoing = filepath.Join(dir, "ringback.wav")
	cfg.Ring.Volume = 50
	return cfg
}

func TestRinger_Ring(t *testing.T) {
	cfg := testRingConfig(t)
	player := &fakePlayer{}
	r := newRinger(cfg, player, nil)

	assert.InDelta(t, 0.5, player.volume, 0.0001)

	require.NoError(t, r.Ring(RingIncoming))
	assert.Equal(t, RingIncoming, r.Playing())

	require.NoError(t, r.Ring(RingOutgoing))
	assert.Equal(t, RingOutgoing, r.Playing())
	assert.Equal(t, []string{cfg.Ring.Incoming, cfg.Ring.Outgoing}, player.looped)

	r.Silence()
	assert.Equal(t, RingKind(""), r.Playing())
	assert.Equal(t, 1, player.stops)
}

func TestRinger_Disabled(t *testing.T) {
	cfg := testRingConfig(t)
	cfg.Ring.Enabled = false
	player := &fakePlayer{}
	r := newRinger(cfg, player, nil)

	require.NoError(t, r.Ring(RingIncoming))
	assert.Empty(t, player.looped)
	assert.Equal(t, RingKind(""), r.Playing())
}

func TestRinger_Errors(t *testing.T) {
	cfg := testRingConfig(t)
	player := &fakePlayer{loopErr: errors.New("decode failed")}
	r := newRinger(cfg, player, nil)

	err := r.Ring(RingIncoming)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode failed")
	assert.Equal(t, RingKind(""), r.Playing())

	err = r.Ring(RingKind("doorbell"))
	assert.Error(t, err)
}

func TestRinger_UpdateConfig(t *testing.T) {
	cfg := testRingConfig(t)
	player := &fakePlayer{}
	r := newRinger(cfg, player, nil)

	next := testRingConfig(t)
	next.Ring.Volume = 100
	r.UpdateConfig(next)

	assert.InDelta(t, 1.0, player.volume, 0.0001)
	assert.ElementsMatch(t, []string{next.Ring.Incoming, next.Ring.Outgoing}, player.preloaded)

	require.NoError(t, r.Ring(RingOutgoing))
	assert.Equal(t, next.Ring.Outgoing, player.looped[0])
}

func TestRinger_SoundChangedReloads(t *testing.T) {
	cfg := testRingConfig(t)
	player := &fakePlayer{}
	r := newRinger(cfg, player, nil)

	r.soundChanged(cfg.Ring.Incoming)
	assert.Equal(t, []string{cfg.Ring.Incoming}, player.invalidated)
	assert.Equal(t, []string{cfg.Ring.Incoming}, player.preloaded)
}

func TestWatcher_Check(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.wav")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))

	var changed []string
	w := NewWatcher(func(p string) { changed = append(changed, p) }, nil)
	w.Watch(path)

	w.Check()
	assert.Empty(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("two and more"), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	w.Check()
	assert.Equal(t, []string{path}, changed)

	w.Check()
	assert.Len(t, changed, 1)

	w.Unwatch(path)
	require.NoError(t, os.Chtimes(path, later.Add(time.Minute), later.Add(time.Minute)))
	w.Check()
	assert.Len(t, changed, 1)
}

func TestWatcher_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.ogg")

	var changed []string
	w := NewWatcher(func(p string) { changed = append(changed, p) }, nil)
	w.Watch(path)

	w.Check()
	assert.Empty(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("tone"), 0644))
	w.Check()
	assert.Equal(t, []string{path}, changed)
}

func TestWatcher_StartStop(t *testing.T) {
	w := NewWatcher(nil, nil)
	w.SetPollInterval(10 * time.Millisecond)

	require.NoError(t, w.Start(t.Context()))
	require.NoError(t, w.Start(t.Context()))
	w.Stop()
	w.Stop()
}

func TestPlayer_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC"), 0644))

	p := NewPlayer(nil)
	err := p.Loop(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, p.Playing())
}

func TestPlayer_MissingFile(t *testing.T) {
	p := NewPlayer(nil)
	assert.Error(t, p.Preload(filepath.Join(t.TempDir(), "nope.wav")))
	assert.Error(t, p.Loop(""))
}

func TestPlayer_ConcurrentReplaceLeavesOneTone(t *testing.T) {
	p := NewPlayer(nil)

	const n = 16
	ctrls := make([]*beep.Ctrl, n)
	for i := range ctrls {
		ctrls[i] = &beep.Ctrl{Streamer: beep.Silence(-1)}
	}

	var wg sync.WaitGroup
	for _, c := range ctrls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.replace(c)
		}()
	}
	wg.Wait()

	live := 0
	for _, c := range ctrls {
		if c.Streamer != nil {
			live++
			assert.Same(t, c, p.current)
		}
	}
	assert.Equal(t, 1, live, "every displaced tone must be silenced")

	p.Stop()
	assert.False(t, p.Playing())
	for _, c := range ctrls {
		assert.Nil(t, c.Streamer)
	}
}

func TestPlayer_SetVolumeClamps(t *testing.T) {
	p := NewPlayer(nil)

	p.SetVolume(1.7)
	assert.Equal(t, 1.0, p.Volume())
	p.SetVolume(-3)
	assert.Equal(t, 0.0, p.Volume())
}

func TestVolumeToExponent(t *testing.T) {
	tests := []struct {
		volume   float64
		expected float64
	}{
		{1.0, 0},
		{0.5, -1},
		{0.25, -2},
		{0, -10},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, volumeToExponent(tt.volume), 0.0001)
	}
}
