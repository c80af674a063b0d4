package fixtures

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/talentflow/internal/storage"
)

// DefaultDebounce is the quiet period after the last fixture file event
// before a reload runs.
const DefaultDebounce = 200 * time.Millisecond

// Watcher re-imports the fixture files whenever their contents change.
type Watcher struct {
	dir      string
	files    storage.Provider
	db       Importer
	logger   *slog.Logger
	debounce time.Duration
	onImport func(Set)

	mu   sync.Mutex
	last string
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// OnImport registers a callback run after every successful re-import.
func OnImport(fn func(Set)) WatchOption {
	return func(w *Watcher) { w.onImport = fn }
}

// NewWatcher watches dir, the root of files. The fixture contents present
// now are taken as already imported.
func NewWatcher(dir string, files storage.Provider, db Importer, opts ...WatchOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		files:    files,
		db:       db,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(w)
	}
	w.last = Digest(files)
	return w
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("fixtures watcher: started", slog.String("dir", w.dir))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("fixtures watcher: stopped")
			return nil

		case <-fire:
			if _, err := w.Reload(ctx); err != nil {
				w.logger.Warn("fixtures watcher: reload failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch filepath.Base(ev.Name) {
			case JobsFile, CandidatesFile:
			default:
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fixtures watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Reload imports the fixture files if their checksum changed since the last
// import. It reports whether an import happened.
func (w *Watcher) Reload(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	digest := Digest(w.files)
	if digest == "" || digest == w.last {
		return false, nil
	}
	set, err := Load(w.files)
	if err != nil {
		return false, err
	}
	if _, err := Seed(ctx, w.db, set, true); err != nil {
		return false, err
	}
	w.last = digest
	w.logger.Info("fixtures watcher: imported",
		slog.Int("jobs", len(set.Jobs)),
		slog.Int("candidates", len(set.Candidates)))
	if w.onImport != nil {
		w.onImport(set)
	}
	return true, nil
}
