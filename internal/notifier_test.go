package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNotifier_PublishSubscribe(t *testing.T) {
	n := NewNotifier()
	a, cancelA := n.Subscribe(4)
	b, cancelB := n.Subscribe(4)
	defer cancelB()

	n.Publish(ChangeEvent{ChatID: "chat_1", Kind: ChangeSaved})

	for name, ch := range map[string]<-chan ChangeEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.ChatID != "chat_1" || ev.Kind != ChangeSaved {
				t.Errorf("subscriber %s got %+v", name, ev)
			}
		default:
			t.Errorf("subscriber %s got nothing", name)
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled subscription channel should be closed")
	}
	n.Publish(ChangeEvent{Kind: ChangeDeleted})
	if ev := <-b; ev.Kind != ChangeDeleted {
		t.Errorf("remaining subscriber got %+v", ev)
	}
}

func TestNotifier_FullSubscriberDoesNotBlock(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe(1)
	defer cancel()

	n.Publish(ChangeEvent{ChatID: "1"})
	n.Publish(ChangeEvent{ChatID: "2"})

	if ev := <-ch; ev.ChatID != "1" {
		t.Errorf("got %+v, want first event", ev)
	}
}

func TestNotifier_NilPublish(t *testing.T) {
	var n *Notifier
	n.Publish(ChangeEvent{Kind: ChangeSaved})
}

func TestWatchStorage(t *testing.T) {
	dir := t.TempDir()
	n := NewNotifier()
	events, cancelSub := n.Subscribe(4)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- WatchStorage(ctx, dir, n, 20*time.Millisecond) }()

	// Keep writing until the watcher is up and reports a change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	i := 0
wait:
	for {
		select {
		case ev := <-events:
			if ev.Kind != ChangeExternal {
				t.Errorf("WatchStorage() event kind = %v, want external", ev.Kind)
			}
			break wait
		case <-tick.C:
			i++
			path := filepath.Join(dir, "cre-saved-chats.json")
			if err := os.WriteFile(path, []byte{byte('0' + i%10)}, 0644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("WatchStorage() did not report a change")
		}
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("WatchStorage() error = %v", err)
	}
}

func TestWatchStorage_MissingPath(t *testing.T) {
	err := WatchStorage(context.Background(), filepath.Join(t.TempDir(), "absent"), NewNotifier(), time.Millisecond)
	if err == nil {
		t.Error("WatchStorage() on missing path should fail")
	}
}
