package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateInMemoryDB creates an in-memory SQLite database with the chatKV table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS chatKV (
		key TEXT PRIMARY KEY,
		value TEXT
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		t.Fatalf("Failed to create chatKV table: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// CreateTestDB creates an in-memory database holding one saved chat
// ("chat_1000_abcde") and its index.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := CreateInMemoryDB(t)

	rows := []struct {
		key   string
		value string
	}{
		{
			key:   "cre-saved-chats",
			value: `[{"id":"chat_1000_abcde","title":"Office vacancy in Atlanta","lastMessage":"Vacancy is around 20%","timestamp":"2025-01-02T10:00:00Z","threadId":"thread_abc123def"}]`,
		},
		{
			key:   "cre-chat-chat_1000_abcde",
			value: `{"messages":[{"role":"user","content":"Office vacancy in Atlanta","timestamp":"2025-01-02T09:59:00Z"},{"role":"assistant","content":"Vacancy is around 20%","timestamp":"2025-01-02T10:00:00Z","agent":"market"}],"threadId":"thread_abc123def"}`,
		},
	}

	for _, row := range rows {
		InsertKV(t, db, row.key, row.value)
	}

	return db
}

// InsertKV inserts a raw row into chatKV
func InsertKV(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO chatKV (key, value) VALUES (?, ?)", key, value); err != nil {
		t.Fatalf("Failed to insert %s: %v", key, err)
	}
}
