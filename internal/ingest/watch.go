package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const defaultDebounce = 2 * time.Second

// Watcher reports which sources changed on disk. Bursts of events for the
// same source collapse into one notification after the debounce window.
type Watcher struct {
	watcher  *fsnotify.Watcher
	sources  []Source
	debounce time.Duration
}

func NewWatcher(sources []Source, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{watcher: w, sources: sources, debounce: debounce}, nil
}

// Watch monitors dir until ctx is done. The channel is closed when the
// watcher stops.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Source, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	out := make(chan Source, len(w.sources))
	go func() {
		defer close(out)

		pending := make(map[int]bool)
		timer := time.NewTimer(w.debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				i, ok := w.sourceOf(ev.Name)
				if !ok {
					continue
				}
				pending[i] = true
				timer.Reset(w.debounce)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logx.Warn().Err(err).Str("dir", dir).Msg("knowledge watcher error")
			case <-timer.C:
				for i := range w.sources {
					if !pending[i] {
						continue
					}
					select {
					case out <- w.sources[i]:
					case <-ctx.Done():
						return
					}
				}
				clear(pending)
			}
		}
	}()
	return out, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) sourceOf(path string) (int, bool) {
	name := filepath.Base(path)
	for i, src := range w.sources {
		for _, f := range src.Files {
			if f == name {
				return i, true
			}
		}
	}
	return 0, false
}
