package crosssync

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"authsession/pkg/credstore"
)

// FileChannel reports changes other processes make to a DiskBacking
// directory. Changes this process made itself are not reported.
type FileChannel struct {
	backing *credstore.DiskBacking
	logger  *slog.Logger
}

// FileChannelOption configures a FileChannel.
type FileChannelOption func(*FileChannel)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) FileChannelOption {
	return func(c *FileChannel) {
		c.logger = logger
	}
}

// NewFileChannel creates a FileChannel over backing.
func NewFileChannel(backing *credstore.DiskBacking, opts ...FileChannelOption) *FileChannel {
	c := &FileChannel{
		backing: backing,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch implements Channel. Each call starts its own filesystem watcher.
func (c *FileChannel) Watch(fn func(Event)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(c.backing.Dir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", c.backing.Dir(), err)
	}

	w := &fileWatch{
		channel:   c,
		watcher:   watcher,
		fn:        fn,
		stopCh:    make(chan struct{}),
		delivered: make(map[string]Event),
	}
	go w.processEvents()

	c.logger.Debug("Watching credential directory", "dir", c.backing.Dir())
	return w.stop, nil
}

type fileWatch struct {
	channel *FileChannel
	watcher *fsnotify.Watcher
	fn      func(Event)

	stopOnce sync.Once
	stopCh   chan struct{}

	// delivered is the last state reported per key; only touched by the
	// processing goroutine.
	delivered map[string]Event
}

func (w *fileWatch) stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *fileWatch) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.channel.logger.Warn("Credential directory watcher error", "error", err)
		}
	}
}

func (w *fileWatch) handleFsEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	key := filepath.Base(event.Name)
	if key == "" || strings.HasPrefix(key, ".") {
		return
	}

	// The file's current content is the source of truth. Several fs events
	// for one write collapse into a single change.
	value, present := w.channel.backing.Read(key)
	ev := Event{Key: key, Value: value, Removed: !present}

	if w.channel.backing.IsOwnState(key, value, present) {
		w.delivered[key] = ev
		return
	}
	if last, ok := w.delivered[key]; ok && last == ev {
		return
	}
	w.delivered[key] = ev

	select {
	case <-w.stopCh:
		return
	default:
	}
	w.fn(ev)
}
