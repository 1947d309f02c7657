// Package watch adapts fsnotify into a single debounced invalidate signal
// for the small set of .git-internal paths that change on meaningful Git
// operations (HEAD, index, refs, packed-refs), the filesystem watcher
// adapter named C12.
package watch

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// DefaultDebounce coalesces bursts of ref/index writes (e.g. during a
// rebase or a large checkout) into a single signal.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches a repository's .git directory and emits a coalesced
// invalidate signal whenever a tracked state file changes.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	out      chan struct{}
	logger   *slog.Logger
	debounce time.Duration
	closed   bool
}

// New starts watching repo's git-internal state paths. Call Close to tear
// the watcher down.
func New(repo *gitlib.Repository, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	gitDir := repo.Native().Path()

	w := &Watcher{
		fsw:      fsw,
		out:      make(chan struct{}, 1),
		logger:   logger,
		debounce: debounce,
	}

	for _, target := range watchTargets(gitDir) {
		if addErr := fsw.Add(target); addErr != nil {
			logger.Debug("watch: skipping path", "path", target, "err", addErr)
		}
	}

	go w.run()

	return w, nil
}

// Events receives a value each time a watched path changes, debounced. The
// channel is closed when Close is called.
func (w *Watcher) Events() <-chan struct{} {
	return w.out
}

// Close stops the underlying fsnotify watcher and closes the Events
// channel. Idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()

		return nil
	}

	w.closed = true
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.out)

	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var fired <-chan time.Time
		if timer != nil {
			fired = timer.C
		}

		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if ignorePath(ev.Name) {
				continue
			}

			// Jitter spreads the invalidate signal across concurrent
			// watchers of the same repository instead of firing in lockstep.
			jitter := time.Duration(rand.Int64N(int64(w.debounce / 2)))
			delay := w.debounce + jitter

			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
		case <-fired:
			timer = nil

			select {
			case w.out <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Warn("watch: fsnotify error", "err", err)
		}
	}
}

// Wait blocks until an invalidate signal arrives or ctx is cancelled,
// returning false in the latter case.
func (w *Watcher) Wait(ctx context.Context) bool {
	select {
	case _, ok := <-w.out:
		return ok
	case <-ctx.Done():
		return false
	}
}

// watchTargets lists the .git-internal paths worth watching: the directory
// itself (HEAD, index, MERGE_HEAD, ...), refs/heads, refs/tags, and
// refs/remotes (one level deep, since fsnotify is not recursive).
func watchTargets(gitDir string) []string {
	targets := []string{
		gitDir,
		filepath.Join(gitDir, "refs"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}

	remotesDir := filepath.Join(gitDir, "refs", "remotes")
	if entries, err := os.ReadDir(remotesDir); err == nil {
		targets = append(targets, remotesDir)

		for _, e := range entries {
			if e.IsDir() {
				targets = append(targets, filepath.Join(remotesDir, e.Name()))
			}
		}
	}

	return targets
}

// ignorePath filters out lock files git2go creates transiently around
// ref/index updates, which would otherwise double-fire every change.
func ignorePath(name string) bool {
	ext := filepath.Ext(name)

	return ext == ".lock" || filepath.Base(name) == ".tmp"
}
