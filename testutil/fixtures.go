package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// ChatFixture describes a saved chat written by the fixture helpers
type ChatFixture struct {
	ID       string
	Title    string
	ThreadID string
	Messages []map[string]interface{}
	Updated  time.Time
}

// DefaultChatFixtures returns two small conversations, newest first
func DefaultChatFixtures() []ChatFixture {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ChatFixture{
		{
			ID:       "chat_2000_bbbbb",
			Title:    "Industrial cap rates",
			ThreadID: "thread_bbbbbbbbb",
			Updated:  base.Add(time.Hour),
			Messages: []map[string]interface{}{
				{"role": "user", "content": "Industrial cap rates", "timestamp": base.Add(59 * time.Minute)},
				{"role": "assistant", "content": "Around 6%.", "timestamp": base.Add(time.Hour), "agent": "market"},
			},
		},
		{
			ID:       "chat_1000_aaaaa",
			Title:    "Retail comps",
			ThreadID: "thread_aaaaaaaaa",
			Updated:  base,
			Messages: []map[string]interface{}{
				{"role": "user", "content": "Retail comps", "timestamp": base.Add(-time.Minute)},
				{"role": "assistant", "content": "Here are three comps.", "timestamp": base, "agent": "main"},
			},
		},
	}
}

// fixtureRows renders chats into the key/value rows used by both storage backends
func fixtureRows(t *testing.T, chats []ChatFixture) map[string]string {
	t.Helper()
	rows := make(map[string]string, len(chats)+1)
	index := make([]map[string]interface{}, 0, len(chats))
	for _, c := range chats {
		last := ""
		if n := len(c.Messages); n > 0 {
			last, _ = c.Messages[n-1]["content"].(string)
		}
		index = append(index, map[string]interface{}{
			"id":          c.ID,
			"title":       c.Title,
			"lastMessage": last,
			"timestamp":   c.Updated,
			"threadId":    c.ThreadID,
		})
		record, err := json.Marshal(map[string]interface{}{"messages": c.Messages, "threadId": c.ThreadID})
		if err != nil {
			t.Fatalf("Failed to marshal chat %s: %v", c.ID, err)
		}
		rows["cre-chat-"+c.ID] = string(record)
	}
	indexJSON, err := json.Marshal(index)
	if err != nil {
		t.Fatalf("Failed to marshal index: %v", err)
	}
	rows["cre-saved-chats"] = string(indexJSON)
	return rows
}

// CreateSQLiteFixture creates a chat database at dbPath holding chats
func CreateSQLiteFixture(t *testing.T, dbPath string, chats []ChatFixture) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chatKV (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	for key, value := range fixtureRows(t, chats) {
		if _, err := db.Exec("INSERT OR REPLACE INTO chatKV (key, value) VALUES (?, ?)", key, value); err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
	}
}

// CreateDirFixture writes chats into dir using the directory store layout
// (one <key>.json file per key).
func CreateDirFixture(t *testing.T, dir string, chats []ChatFixture) {
	t.Helper()
	for key, value := range fixtureRows(t, chats) {
		WriteFile(t, dir, fmt.Sprintf("%s.json", key), []byte(value))
	}
}
