package internal

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/cre-chat/testutil"
)

// storeBackends returns one fresh KeyValueStore per backend
func storeBackends(t *testing.T) map[string]KeyValueStore {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(testutil.CreateInMemoryDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	return map[string]KeyValueStore{
		"dir":    NewDirStore(filepath.Join(t.TempDir(), "chats")),
		"sqlite": sqliteStore,
	}
}

func sampleChat(id string, ts time.Time, content string) (SavedChat, ChatRecord) {
	msgs := []Message{
		{Role: RoleUser, Content: content, Timestamp: ts.Add(-time.Second)},
		{Role: RoleAssistant, Content: "reply to " + content, Timestamp: ts, Agent: "main"},
	}
	return SavedChat{
			ID:          id,
			Title:       DeriveTitle(msgs),
			LastMessage: DerivePreview(msgs),
			Timestamp:   ts,
			ThreadID:    "thread_" + id,
		}, ChatRecord{
			Messages: msgs,
			ThreadID: "thread_" + id,
		}
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, kv := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			notifier := NewNotifier()
			events, cancel := notifier.Subscribe(16)
			defer cancel()
			store := NewSessionStore(kv, notifier)

			older, olderRec := sampleChat("chat_1", base, "older question")
			newer, newerRec := sampleChat("chat_2", base.Add(time.Hour), "newer question")
			if err := store.SaveChat(older, olderRec); err != nil {
				t.Fatalf("SaveChat() error = %v", err)
			}
			if err := store.SaveChat(newer, newerRec); err != nil {
				t.Fatalf("SaveChat() error = %v", err)
			}

			index := store.LoadIndex()
			if len(index) != 2 || index[0].ID != "chat_2" || index[1].ID != "chat_1" {
				t.Fatalf("LoadIndex() = %+v, want newest first", index)
			}

			// Re-saving an entry replaces it rather than duplicating it.
			older.Timestamp = base.Add(2 * time.Hour)
			if err := store.SaveChat(older, olderRec); err != nil {
				t.Fatalf("SaveChat() error = %v", err)
			}
			index = store.LoadIndex()
			if len(index) != 2 || index[0].ID != "chat_1" {
				t.Fatalf("LoadIndex() after update = %+v", index)
			}

			record, err := store.LoadChat("chat_2")
			if err != nil {
				t.Fatalf("LoadChat() error = %v", err)
			}
			if len(record.Messages) != 2 || record.ThreadID != "thread_chat_2" {
				t.Errorf("LoadChat() = %+v", record)
			}

			if err := store.DeleteChat("chat_2"); err != nil {
				t.Fatalf("DeleteChat() error = %v", err)
			}
			if _, err := store.LoadChat("chat_2"); !errors.Is(err, ErrChatNotFound) {
				t.Errorf("LoadChat() after delete error = %v, want ErrChatNotFound", err)
			}
			if index := store.LoadIndex(); len(index) != 1 || index[0].ID != "chat_1" {
				t.Errorf("LoadIndex() after delete = %+v", index)
			}

			var kinds []ChangeKind
			for len(events) > 0 {
				kinds = append(kinds, (<-events).Kind)
			}
			want := []ChangeKind{ChangeSaved, ChangeSaved, ChangeSaved, ChangeDeleted}
			if len(kinds) != len(want) {
				t.Fatalf("change events = %v, want %v", kinds, want)
			}
			for i := range want {
				if kinds[i] != want[i] {
					t.Errorf("change event %d = %v, want %v", i, kinds[i], want[i])
				}
			}
		})
	}
}

func TestSessionStore_CorruptData(t *testing.T) {
	for name, kv := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewSessionStore(kv, nil)

			if err := kv.Set(SavedChatsKey, "{not json"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if got := store.LoadIndex(); len(got) != 0 {
				t.Errorf("LoadIndex() with corrupt index = %+v, want empty", got)
			}

			if err := kv.Set(ChatKey("bad"), "[[["); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			_, err := store.LoadChat("bad")
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("LoadChat() corrupt record error = %v, want *ParseError", err)
			}

			// A corrupt index is replaced by the next save.
			chat, rec := sampleChat("chat_ok", time.Now(), "hello")
			if err := store.SaveChat(chat, rec); err != nil {
				t.Fatalf("SaveChat() error = %v", err)
			}
			if got := store.LoadIndex(); len(got) != 1 {
				t.Errorf("LoadIndex() after save = %+v", got)
			}
		})
	}
}

func TestSessionStore_CreateEmptyChat(t *testing.T) {
	store := NewSessionStore(NewDirStore(t.TempDir()), nil)
	now := time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC)

	summary, err := store.CreateEmptyChat("thread_abc", now)
	if err != nil {
		t.Fatalf("CreateEmptyChat() error = %v", err)
	}
	if !strings.HasPrefix(summary.ID, "chat_") || len(summary.ID) != len("chat_")+9 {
		t.Errorf("CreateEmptyChat() id = %q", summary.ID)
	}
	if summary.Title != "New conversation" || summary.LastMessage != "No messages yet" {
		t.Errorf("CreateEmptyChat() summary = %+v", summary)
	}

	record, err := store.LoadChat(summary.ID)
	if err != nil {
		t.Fatalf("LoadChat() error = %v", err)
	}
	if record.Messages == nil || len(record.Messages) != 0 || record.ThreadID != "thread_abc" {
		t.Errorf("LoadChat() = %+v, want empty message list on thread_abc", record)
	}
}

func TestSessionStore_SearchAndTranscript(t *testing.T) {
	store := NewSessionStore(NewDirStore(t.TempDir()), nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, q := range []string{"Office vacancy Atlanta", "Retail comps Dallas", "office rents"} {
		chat, rec := sampleChat("chat_"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), q)
		if err := store.SaveChat(chat, rec); err != nil {
			t.Fatalf("SaveChat() error = %v", err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 3},
		{query: "OFFICE", want: 2},
		{query: "dallas", want: 1},
		{query: "warehouse", want: 0},
	}
	for _, tt := range tests {
		if got := store.Search(tt.query); len(got) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.query, len(got), tt.want)
		}
	}

	tr, err := store.Transcript("chat_b")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if tr.Chat.Title != "Retail comps Dallas" || len(tr.Messages) != 2 {
		t.Errorf("Transcript() = %+v", tr)
	}

	// Records missing from the index still produce a summary.
	orphanMsgs := []Message{{Role: RoleUser, Content: "orphaned"}}
	if err := store.saveRecord("chat_orphan", ChatRecord{Messages: orphanMsgs}); err != nil {
		t.Fatalf("saveRecord() error = %v", err)
	}
	tr, err = store.Transcript("chat_orphan")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if tr.Chat.Title != "orphaned" {
		t.Errorf("Transcript() orphan title = %q", tr.Chat.Title)
	}
}

func TestSessionStore_ReadsFixtures(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateDirFixture(t, dir, testutil.DefaultChatFixtures())
	dbPath := filepath.Join(t.TempDir(), "chats.db")
	testutil.CreateSQLiteFixture(t, dbPath, testutil.DefaultChatFixtures())

	sqliteStore, err := OpenSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	defer sqliteStore.Close()

	for name, kv := range map[string]KeyValueStore{"dir": NewDirStore(dir), "sqlite": sqliteStore} {
		t.Run(name, func(t *testing.T) {
			store := NewSessionStore(kv, nil)
			index := store.LoadIndex()
			if len(index) != 2 || index[0].ID != "chat_2000_bbbbb" {
				t.Fatalf("LoadIndex() = %+v", index)
			}
			record, err := store.LoadChat("chat_1000_aaaaa")
			if err != nil {
				t.Fatalf("LoadChat() error = %v", err)
			}
			if len(record.Messages) != 2 || record.Messages[1].Content != "Here are three comps." {
				t.Errorf("LoadChat() = %+v", record)
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name: "long first user message is cut at 30",
			messages: []Message{
				{Role: RoleUser, Content: "What is the vacancy rate in midtown Atlanta for office space?"},
			},
			want: "What is the vacancy rate in mi...",
		},
		{
			name: "quarterly vacancy question keeps 30 characters",
			messages: []Message{
				{Role: RoleUser, Content: "What is the vacancy rate in midtown Atlanta for office space this quarter?"},
			},
			want: "What is the vacancy rate in mi...",
		},
		{
			name:     "exactly 30 characters is kept",
			messages: []Message{{Role: RoleUser, Content: strings.Repeat("a", 30)}},
			want:     strings.Repeat("a", 30),
		},
		{
			name: "first user message wins",
			messages: []Message{
				{Role: RoleAssistant, Content: "Welcome"},
				{Role: RoleUser, Content: "Cap rates"},
				{Role: RoleUser, Content: "Second"},
			},
			want: "Cap rates",
		},
		{
			name:     "no user message",
			messages: []Message{{Role: RoleAssistant, Content: "Hi"}},
			want:     "New conversation",
		},
		{
			name:     "multibyte runes are not split",
			messages: []Message{{Role: RoleUser, Content: strings.Repeat("é", 31)}},
			want:     strings.Repeat("é", 30) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.messages); got != tt.want {
				t.Errorf("DeriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDerivePreview(t *testing.T) {
	long := strings.Repeat("x", 41)
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{name: "empty", messages: nil, want: ""},
		{name: "short last message", messages: []Message{{Content: "a"}, {Content: "b"}}, want: "b"},
		{name: "long last message", messages: []Message{{Content: long}}, want: strings.Repeat("x", 40) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePreview(tt.messages); got != tt.want {
				t.Errorf("DerivePreview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionStore_OrphanedChats(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, kv := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewSessionStore(kv, nil)

			chat, record := sampleChat("chat_1", base, "indexed")
			if err := store.SaveChat(chat, record); err != nil {
				t.Fatalf("SaveChat() error = %v", err)
			}
			if err := kv.Set(ChatKey("chat_9"), `{"messages":[]}`); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := kv.Set(ChatKey("chat_3"), `{"messages":[]}`); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			orphans, err := store.OrphanedChats()
			if err != nil {
				t.Fatalf("OrphanedChats() error = %v", err)
			}
			if len(orphans) != 2 || orphans[0] != "chat_3" || orphans[1] != "chat_9" {
				t.Errorf("OrphanedChats() = %v, want [chat_3 chat_9]", orphans)
			}
		})
	}
}
