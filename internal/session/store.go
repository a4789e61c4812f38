// Package session owns the durable set of conversations and the active
// conversation pointer. Every mutation is followed by a synchronous,
// full-state Save through a Backend.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Backend reads and writes the serialized state. Read returns (nil, nil) when
// nothing has been saved yet. Write must not corrupt previously saved data
// when it fails.
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// snapshot is the durable JSON shape.
type snapshot struct {
	ActiveChatID *string                       `json:"activeChatId"`
	Chats        map[string]*chat.Conversation `json:"chats"`
}

// Store holds the in-memory session state. It is not safe for concurrent use;
// the conversation controller serializes access.
type Store struct {
	backend Backend
	log     *slog.Logger

	activeID string
	chats    map[string]*chat.Conversation
}

// New creates an empty store over the given backend.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		log:     logger.L.With("component", "session"),
		chats:   make(map[string]*chat.Conversation),
	}
}

func (s *Store) reset() {
	s.activeID = ""
	s.chats = make(map[string]*chat.Conversation)
}

// Load replaces the in-memory state with the durable one. Absent, unreadable
// or structurally invalid data resets the store to empty; Load never fails.
func (s *Store) Load() {
	s.reset()

	data, err := s.backend.Read()
	if err != nil {
		s.log.Warn("failed to read session state; starting empty", "error", err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil || root == nil {
		s.log.Warn("session state is not a JSON object; starting empty", "error", err)
		return
	}
	rawChats, ok := root["chats"]
	if !ok {
		s.log.Warn("session state has no chats; starting empty")
		return
	}
	var chats map[string]json.RawMessage
	if err := json.Unmarshal(rawChats, &chats); err != nil || chats == nil {
		s.log.Warn("session chats is not an object; starting empty", "error", err)
		return
	}

	for id, raw := range chats {
		var c chat.Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			s.log.Warn("skipping malformed conversation", "id", id, "error", err)
			continue
		}
		c.ID = id
		s.chats[id] = &c
	}

	var active *string
	if raw, ok := root["activeChatId"]; ok {
		if err := json.Unmarshal(raw, &active); err != nil {
			active = nil
		}
	}
	if active != nil {
		s.activeID = *active
	}
	if _, ok := s.chats[s.activeID]; !ok {
		s.activeID = ""
		if sorted := s.Sorted(); len(sorted) > 0 {
			s.activeID = sorted[0].ID
		}
	}
	s.log.Debug("session state loaded", "conversations", len(s.chats), "active", s.activeID)
}

// Save serializes the full state and writes it through the backend.
func (s *Store) Save() error {
	snap := snapshot{Chats: s.chats}
	if s.activeID != "" {
		id := s.activeID
		snap.ActiveChatID = &id
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.backend.Write(data); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// NeedsInitialConversation reports whether the store has no usable active
// conversation.
func (s *Store) NeedsInitialConversation() bool {
	return s.activeID == "" || len(s.chats) == 0
}

// Get returns the conversation with the given id.
func (s *Store) Get(id string) (*chat.Conversation, bool) {
	c, ok := s.chats[id]
	return c, ok
}

// Put inserts or replaces a conversation.
func (s *Store) Put(c *chat.Conversation) {
	s.chats[c.ID] = c
}

// Remove deletes a conversation. Clearing the active pointer is left to the
// caller so it can pick the successor.
func (s *Store) Remove(id string) {
	delete(s.chats, id)
}

// ActiveID returns the active conversation id, or "" when none is set.
func (s *Store) ActiveID() string {
	return s.activeID
}

// Active returns the active conversation.
func (s *Store) Active() (*chat.Conversation, bool) {
	return s.Get(s.activeID)
}

// SetActive moves the active pointer. An unknown id clears it.
func (s *Store) SetActive(id string) {
	if _, ok := s.chats[id]; !ok {
		id = ""
	}
	s.activeID = id
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	return len(s.chats)
}

// Sorted returns the conversations in display order: most recently modified
// first, ties broken by id.
func (s *Store) Sorted() []*chat.Conversation {
	out := make([]*chat.Conversation, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// IDs returns the conversation ids in display order.
func (s *Store) IDs() []string {
	sorted := s.Sorted()
	ids := make([]string, len(sorted))
	for i, c := range sorted {
		ids[i] = c.ID
	}
	return ids
}
