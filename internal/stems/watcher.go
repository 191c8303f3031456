package stems

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a stem file must stay unchanged before it counts
const DefaultSettle = 300 * time.Millisecond

// Watcher reports when stem files of a source appear or change on disk, for
// example when an external separation run finishes writing them.
type Watcher struct {
	source string
	settle time.Duration
	fs     *fsnotify.Watcher
	log    *zap.Logger

	changes chan []File
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the directory of source. log may be nil.
func Watch(source string, settle time.Duration, log *zap.Logger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(source)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(source), err)
	}

	w := &Watcher{
		source:  source,
		settle:  settle,
		fs:      fsw,
		log:     log,
		changes: make(chan []File, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes delivers the current stem files once writes to them have settled.
// Only the most recent set is kept if the receiver falls behind.
func (w *Watcher) Changes() <-chan []File {
	return w.changes
}

// Close stops watching
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.changes)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if IsSibling(w.source, event.Name) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			now := time.Now()
			settled := true
			for _, last := range pending {
				if now.Sub(last) < w.settle {
					settled = false
					break
				}
			}
			if !settled {
				continue
			}
			clear(pending)

			found := Existing(w.source)
			if len(found) == 0 {
				continue
			}
			w.log.Debug("stem files changed", zap.String("source", w.source), zap.Int("count", len(found)))
			w.deliver(found)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("stem watcher error", zap.Error(err))
		}
	}
}

// deliver replaces any undelivered set with found
func (w *Watcher) deliver(found []File) {
	for {
		select {
		case w.changes <- found:
			return
		default:
		}
		select {
		case <-w.changes:
		default:
		}
	}
}
