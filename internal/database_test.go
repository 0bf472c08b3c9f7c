package internal

import (
	"path/filepath"
	"testing"

	"github.com/iksnae/cre-chat/testutil"
)

func TestOpenDatabase(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "existing database",
			setup: func(t *testing.T) string {
				dbPath := filepath.Join(testutil.CreateTempDir(t), "test.db")
				testutil.CreateSQLiteFixture(t, dbPath, testutil.DefaultChatFixtures())
				return dbPath
			},
		},
		{
			name: "new database is created",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "fresh.db")
			},
		},
		{
			name: "missing parent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "nope", "sub", "x.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := OpenDatabase(tt.setup(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenDatabase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if db != nil {
				db.Close()
			}
		})
	}
}

func TestSQLiteStore_GetSetDelete(t *testing.T) {
	store, err := NewSQLiteStore(testutil.CreateInMemoryDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Errorf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := store.Set("k", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set("k", "v2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, ok, err := store.Get("k")
	if err != nil || !ok || got != "v2" {
		t.Errorf("Get(k) = %q, %v, %v; want v2", got, ok, err)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("k"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("Get() after Delete() still finds key")
	}
}

func TestSQLiteStore_Keys(t *testing.T) {
	db := testutil.CreateTestDB(t)
	testutil.InsertKV(t, db, "cre-chatXother", "{}")
	testutil.InsertKV(t, db, "unrelated", "{}")
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{prefix: ChatKeyPrefix, want: []string{"cre-chat-chat_1000_abcde"}},
		{prefix: "cre-", want: []string{"cre-chat-chat_1000_abcde", "cre-chatXother", "cre-saved-chats"}},
		{prefix: "cre-chat-chat_1", want: []string{"cre-chat-chat_1000_abcde"}},
		// '_' must match literally, not as a LIKE wildcard
		{prefix: "cre-chat_", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := store.Keys(tt.prefix)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Keys(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Keys(%q)[%d] = %q, want %q", tt.prefix, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got, want := escapeLike(`a_b%c\d`), `a\_b\%c\\d`; got != want {
		t.Errorf("escapeLike() = %q, want %q", got, want)
	}
}
