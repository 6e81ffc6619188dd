package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"jobmate/jobsync/internal/model"
)

// DefaultDebounce coalesces the burst of events one SQLite write produces
// (main file, -wal and -shm).
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls OnChange whenever another process changes the logged-in
// user in the session file.
type Watcher struct {
	store    *Store
	onChange func(ctx context.Context, u *model.User)
	debounce time.Duration
}

// NewWatcher returns a Watcher over store.
func NewWatcher(store *Store, onChange func(ctx context.Context, u *model.User)) *Watcher {
	return &Watcher{store: store, onChange: onChange, debounce: DefaultDebounce}
}

// Run watches until ctx is done. The user at start is the baseline: only
// later changes are reported.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.store.Path())
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	last, err := w.store.Current(ctx)
	if err != nil {
		return err
	}

	base := filepath.Base(w.store.Path())
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("session watcher error", "err", err)

		case <-timer.C:
			u, err := w.store.Current(ctx)
			if err != nil {
				slog.Warn("reading session after change failed", "err", err)
				continue
			}
			if sameUser(last, u) {
				continue
			}
			last = u
			w.onChange(ctx, u)
		}
	}
}

func sameUser(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
