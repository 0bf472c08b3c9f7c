package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes what happened to the saved-chat set
type ChangeKind string

const (
	ChangeSaved    ChangeKind = "saved"
	ChangeCreated  ChangeKind = "created"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeCleared  ChangeKind = "cleared"
	ChangeExternal ChangeKind = "external"
)

// ChangeEvent tells listeners the saved-chat list should be reloaded
type ChangeEvent struct {
	ChatID string
	Kind   ChangeKind
}

// Notifier fans change events out to subscribers. Slow subscribers miss
// events rather than block publishers; an event only means "reload".
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan ChangeEvent
	next int
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan ChangeEvent)}
}

// Subscribe registers a listener and returns its channel and a cancel func
func (n *Notifier) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ChangeEvent, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber. A nil notifier drops the event.
func (n *Notifier) Publish(ev ChangeEvent) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// WatchStorage publishes ChangeExternal events when files under path change,
// coalescing bursts within debounce. path may be a storage directory or a
// database file, in which case its parent directory is watched. It blocks
// until ctx is done.
func WatchStorage(ctx context.Context, path string, n *Notifier, debounce time.Duration) error {
	target := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		target = filepath.Dir(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(target); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}
	LogDebug("Watching %s for changes", target)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			LogDebug("Storage change: %s", ev)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			n.Publish(ChangeEvent{Kind: ChangeExternal})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			LogWarn("Storage watcher error: %v", err)
		}
	}
}
