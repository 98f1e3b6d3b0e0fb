package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often watched sound files are checked.
const DefaultPollInterval = 2 * time.Second

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(path string) (fileStamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, true
}

// Watcher polls sound files and reports the ones replaced on disk.
type Watcher struct {
	mu       sync.Mutex
	logger   *slog.Logger
	onChange func(path string)
	stamps   map[string]fileStamp
	interval time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a Watcher that calls onChange for every changed path.
func NewWatcher(onChange func(path string), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:   logger,
		onChange: onChange,
		stamps:   make(map[string]fileStamp),
		interval: DefaultPollInterval,
	}
}

// SetPollInterval sets the polling interval. It takes effect on the next Start.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}

// Watch adds path to the watch list.
func (w *Watcher) Watch(path string) {
	if path == "" {
		return
	}
	stamp, _ := stampOf(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps[path] = stamp
}

// Unwatch removes path from the watch list.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.stamps, path)
}

// Start begins polling until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.loop(ctx, w.interval, w.stopCh, w.doneCh)
	w.logger.Debug("sound watcher started", "interval", w.interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
}

func (w *Watcher) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check compares every watched file with its last seen version and reports
// the changed ones. Files that vanished are reported once they reappear.
func (w *Watcher) Check() {
	var changed []string

	w.mu.Lock()
	for path, last := range w.stamps {
		stamp, ok := stampOf(path)
		if !ok {
			continue
		}
		if stamp != last {
			w.stamps[path] = stamp
			changed = append(changed, path)
		}
	}
	w.mu.Unlock()

	for _, path := range changed {
		w.logger.Debug("sound file changed", "path", path)
		if w.onChange != nil {
			w.onChange(path)
		}
	}
}
