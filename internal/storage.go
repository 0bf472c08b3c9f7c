package internal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// SavedChatsKey holds the JSON array of SavedChat summaries
	SavedChatsKey = "cre-saved-chats"
	// ChatKeyPrefix prefixes the key holding each ChatRecord
	ChatKeyPrefix = "cre-chat-"

	defaultChatTitle = "New conversation"
	emptyChatPreview = "No messages yet"
	titleLength      = 30
	previewLength    = 40
)

// KeyValueStore is the flat string store chats are persisted into
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
	Close() error
}

// ChatKey returns the key holding the record of chat id
func ChatKey(id string) string {
	return ChatKeyPrefix + id
}

// SessionStore persists saved chats as an index plus one record per chat
type SessionStore struct {
	kv       KeyValueStore
	notifier *Notifier
}

// NewSessionStore creates a session store over kv. notifier may be nil.
func NewSessionStore(kv KeyValueStore, notifier *Notifier) *SessionStore {
	return &SessionStore{kv: kv, notifier: notifier}
}

// Notifier returns the notifier change events are published on
func (s *SessionStore) Notifier() *Notifier {
	return s.notifier
}

// Close closes the underlying key/value store
func (s *SessionStore) Close() error {
	return s.kv.Close()
}

// LoadIndex returns the saved chats, newest first. Unreadable or corrupt
// data is logged and treated as an empty index.
func (s *SessionStore) LoadIndex() []SavedChat {
	raw, ok, err := s.kv.Get(SavedChatsKey)
	if err != nil {
		LogError("Failed to read saved chats: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var chats []SavedChat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		LogError("%v", &ParseError{Source: "index", Key: SavedChatsKey, Err: err})
		return nil
	}
	sortChats(chats)
	return chats
}

// Search returns the saved chats whose title contains query, ignoring case
func (s *SessionStore) Search(query string) []SavedChat {
	chats := s.LoadIndex()
	if query == "" {
		return chats
	}
	needle := strings.ToLower(query)
	var matches []SavedChat
	for _, chat := range chats {
		if strings.Contains(strings.ToLower(chat.Title), needle) {
			matches = append(matches, chat)
		}
	}
	return matches
}

// Find returns the index entry for id
func (s *SessionStore) Find(id string) (SavedChat, bool) {
	for _, chat := range s.LoadIndex() {
		if chat.ID == id {
			return chat, true
		}
	}
	return SavedChat{}, false
}

// SaveChat upserts summary into the index and writes record under its key
func (s *SessionStore) SaveChat(summary SavedChat, record ChatRecord) error {
	if record.Messages == nil {
		record.Messages = []Message{}
	}

	chats := withoutChat(s.LoadIndex(), summary.ID)
	chats = append(chats, summary)
	sortChats(chats)

	if err := s.saveIndex(chats); err != nil {
		return err
	}
	if err := s.saveRecord(summary.ID, record); err != nil {
		return err
	}

	LogDebug("Saved chat %s (%d messages)", summary.ID, len(record.Messages))
	s.notifier.Publish(ChangeEvent{ChatID: summary.ID, Kind: ChangeSaved})
	return nil
}

// LoadChat returns the record of chat id, or ErrChatNotFound
func (s *SessionStore) LoadChat(id string) (*ChatRecord, error) {
	key := ChatKey(id)
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}

	var record ChatRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, &ParseError{Source: "chat", Key: key, Err: err}
	}
	return &record, nil
}

// Transcript returns the index entry and messages of chat id. A record
// missing from the index gets a summary derived from its messages.
func (s *SessionStore) Transcript(id string) (*Transcript, error) {
	record, err := s.LoadChat(id)
	if err != nil {
		return nil, err
	}
	chat, ok := s.Find(id)
	if !ok {
		chat = SavedChat{
			ID:          id,
			Title:       DeriveTitle(record.Messages),
			LastMessage: DerivePreview(record.Messages),
			ThreadID:    record.ThreadID,
		}
		if n := len(record.Messages); n > 0 {
			chat.Timestamp = record.Messages[n-1].Timestamp
		}
	}
	return &Transcript{Chat: chat, Messages: record.Messages}, nil
}

// DeleteChat removes chat id from the index and deletes its record
func (s *SessionStore) DeleteChat(id string) error {
	raw, ok, err := s.kv.Get(SavedChatsKey)
	if err != nil {
		return err
	}
	if ok && raw != "" {
		if err := s.saveIndex(withoutChat(s.LoadIndex(), id)); err != nil {
			return err
		}
	}
	if err := s.kv.Delete(ChatKey(id)); err != nil {
		return err
	}

	LogDebug("Deleted chat %s", id)
	s.notifier.Publish(ChangeEvent{ChatID: id, Kind: ChangeDeleted})
	return nil
}

// OrphanedChats returns the ids of stored chat records missing from the index
func (s *SessionStore) OrphanedChats() ([]string, error) {
	keys, err := s.kv.Keys(ChatKeyPrefix)
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]bool)
	for _, chat := range s.LoadIndex() {
		indexed[chat.ID] = true
	}

	var orphans []string
	for _, key := range keys {
		id := strings.TrimPrefix(key, ChatKeyPrefix)
		if !indexed[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// CreateEmptyChat registers a new conversation with no messages
func (s *SessionStore) CreateEmptyChat(threadID string, now time.Time) (SavedChat, error) {
	summary := SavedChat{
		ID:          "chat_" + randomToken(9),
		Title:       defaultChatTitle,
		LastMessage: emptyChatPreview,
		Timestamp:   now,
		ThreadID:    threadID,
	}

	chats := append(s.LoadIndex(), summary)
	sortChats(chats)
	if err := s.saveIndex(chats); err != nil {
		return SavedChat{}, err
	}
	if err := s.saveRecord(summary.ID, ChatRecord{Messages: []Message{}, ThreadID: threadID}); err != nil {
		return SavedChat{}, err
	}

	s.notifier.Publish(ChangeEvent{ChatID: summary.ID, Kind: ChangeCreated})
	return summary, nil
}

func (s *SessionStore) saveIndex(chats []SavedChat) error {
	if chats == nil {
		chats = []SavedChat{}
	}
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return s.kv.Set(SavedChatsKey, string(data))
}

func (s *SessionStore) saveRecord(id string, record ChatRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal chat %s: %w", id, err)
	}
	return s.kv.Set(ChatKey(id), string(data))
}

func withoutChat(chats []SavedChat, id string) []SavedChat {
	out := make([]SavedChat, 0, len(chats))
	for _, chat := range chats {
		if chat.ID != id {
			out = append(out, chat)
		}
	}
	return out
}

func sortChats(chats []SavedChat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].Timestamp.After(chats[j].Timestamp)
	})
}

// DeriveTitle returns the first user message cut to 30 characters, with
// "..." appended when cut, or "New conversation" when there is none.
func DeriveTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == RoleUser {
			return truncate(msg.Content, titleLength)
		}
	}
	return defaultChatTitle
}

// DerivePreview returns the last message cut to 40 characters, with "..."
// appended when cut.
func DerivePreview(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return truncate(messages[len(messages)-1].Content, previewLength)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
