// Package watch hands snapshot recordings dropped into a directory to a
// handler, one file at a time.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/meshscan/internal/logger"
)

// DefaultSettle is how long a file must stay untouched before it is handled.
const DefaultSettle = 250 * time.Millisecond

// ErrClosed is returned when running an inbox that was already closed.
var ErrClosed = errors.New("inbox already closed")

// Handler processes one file. Errors are logged and do not stop the inbox.
type Handler func(ctx context.Context, path string) error

// Inbox watches a directory for files matching a glob pattern.
type Inbox struct {
	dir     string
	pattern string
	settle  time.Duration

	watcher *fsnotify.Watcher
	closed  bool
}

// NewInbox starts watching dir for files matching pattern (e.g. "*.yaml").
func NewInbox(dir, pattern string) (*Inbox, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Inbox{
		dir:     dir,
		pattern: pattern,
		settle:  DefaultSettle,
		watcher: w,
	}, nil
}

// SetSettle changes the quiet period required before a file is handled.
func (in *Inbox) SetSettle(d time.Duration) {
	in.settle = d
}

// Close stops watching.
func (in *Inbox) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	return in.watcher.Close()
}

// Backlog returns the matching files already in the directory, sorted by name.
func (in *Inbox) Backlog() ([]string, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !in.matches(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(in.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run delivers settled files to handle until ctx is done or the inbox is
// closed. A file that keeps changing is handled once it has been quiet for
// the settle period.
func (in *Inbox) Run(ctx context.Context, handle Handler) error {
	if in.closed {
		return ErrClosed
	}

	pending := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	arm := func() {
		if len(pending) == 0 {
			return
		}
		next := time.Time{}
		for _, at := range pending {
			if next.IsZero() || at.Before(next) {
				next = at
			}
		}
		timer.Reset(time.Until(next))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-in.watcher.Events:
			if !ok {
				return nil
			}
			if !in.matches(filepath.Base(e.Name)) {
				continue
			}
			switch {
			case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
				pending[e.Name] = time.Now().Add(in.settle)
				arm()
			case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
				delete(pending, e.Name)
			}

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox watcher error", zap.String("dir", in.dir), zap.Error(err))

		case now := <-timer.C:
			for _, path := range due(pending, now) {
				delete(pending, path)
				if ctx.Err() != nil {
					return nil
				}
				if err := handle(ctx, path); err != nil {
					logger.Warn("inbox file failed", zap.String("file", path), zap.Error(err))
				}
			}
			arm()
		}
	}
}

func (in *Inbox) matches(name string) bool {
	ok, _ := filepath.Match(in.pattern, name)
	return ok
}

// due returns the pending files whose quiet period ended by now, oldest first.
func due(pending map[string]time.Time, now time.Time) []string {
	var paths []string
	for path, at := range pending {
		if !at.After(now) {
			paths = append(paths, path)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := pending[paths[i]], pending[paths[j]]
		if a.Equal(b) {
			return paths[i] < paths[j]
		}
		return a.Before(b)
	})
	return paths
}
