package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/chat"
)

func populate(t *testing.T, s *Store) (*chat.Conversation, *chat.Conversation) {
	t.Helper()
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	older := chat.New("older", "sys", base)
	older.Append(chat.Message{Role: chat.RoleUser, Content: "hi", Timestamp: base.Add(time.Minute)})
	newer := chat.New("newer", "sys", base.Add(time.Hour))

	s.Put(older)
	s.Put(newer)
	s.SetActive(older.ID)
	return older, newer
}

func requireSameState(t *testing.T, want, got *Store) {
	t.Helper()
	require.Equal(t, want.ActiveID(), got.ActiveID())
	require.Equal(t, want.Len(), got.Len())
	for _, c := range want.Sorted() {
		loaded, ok := got.Get(c.ID)
		require.True(t, ok, "missing conversation %s", c.ID)
		require.Equal(t, c.Title, loaded.Title)
		require.Len(t, loaded.Messages, len(c.Messages))
		for i := range c.Messages {
			require.Equal(t, c.Messages[i].Role, loaded.Messages[i].Role)
			require.Equal(t, c.Messages[i].Content, loaded.Messages[i].Content)
			require.True(t, c.Messages[i].Timestamp.Equal(loaded.Messages[i].Timestamp))
		}
		require.True(t, c.LastModified.Equal(loaded.LastModified))
	}
}

func TestRoundTrip(t *testing.T) {
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	backends := map[string]Backend{
		"memory": &MemoryBackend{},
		"file":   NewFileBackend(filepath.Join(t.TempDir(), "nested", "state.json")),
		"sqlite": sqlite,
	}
	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			s := New(backend)
			populate(t, s)
			require.NoError(t, s.Save())

			loaded := New(backend)
			loaded.Load()
			requireSameState(t, s, loaded)

			// Saving again over existing data replaces it.
			s.Remove(s.ActiveID())
			s.SetActive(s.Sorted()[0].ID)
			require.NoError(t, s.Save())
			loaded.Load()
			requireSameState(t, s, loaded)
		})
	}
}

func TestLoadEmptyBackend(t *testing.T) {
	s := New(&MemoryBackend{})
	s.Load()
	require.Equal(t, 0, s.Len())
	require.True(t, s.NeedsInitialConversation())
}

func TestLoadResetsInvalidState(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{{`,
		"array":           `[1,2,3]`,
		"null":            `null`,
		"string":          `"hello"`,
		"missing chats":   `{"activeChatId":"a"}`,
		"chats not a map": `{"activeChatId":"a","chats":[1]}`,
		"chats null":      `{"activeChatId":"a","chats":null}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			b := &MemoryBackend{}
			b.Seed([]byte(raw))
			s := New(b)
			s.Load()
			require.Equal(t, 0, s.Len())
			require.Equal(t, "", s.ActiveID())
			require.True(t, s.NeedsInitialConversation())
		})
	}
}

func TestLoadSkipsMalformedConversation(t *testing.T) {
	b := &MemoryBackend{}
	b.Seed([]byte(`{"activeChatId":"bad","chats":{
		"good":{"id":"good","title":"ok","messages":[{"role":"system","content":"s","timestamp":"2024-01-01T00:00:00Z"}],"lastModified":"2024-01-01T00:00:00Z"},
		"bad":{"id":"bad","title":42}
	}}`))
	s := New(b)
	s.Load()

	require.Equal(t, 1, s.Len())
	require.Equal(t, "good", s.ActiveID())
}

func TestLoadCorrectsDanglingActive(t *testing.T) {
	b := &MemoryBackend{}
	b.Seed([]byte(`{"activeChatId":"gone","chats":{
		"a":{"title":"a","messages":[],"lastModified":"2024-01-01T00:00:00Z"},
		"b":{"title":"b","messages":[],"lastModified":"2024-03-01T00:00:00Z"}
	}}`))
	s := New(b)
	s.Load()

	require.Equal(t, "b", s.ActiveID())
	c, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", c.ID, "id is taken from the map key")
}

func TestLoadNullActive(t *testing.T) {
	b := &MemoryBackend{}
	b.Seed([]byte(`{"activeChatId":null,"chats":{}}`))
	s := New(b)
	s.Load()
	require.True(t, s.NeedsInitialConversation())
}

func TestSaveWritesNullActive(t *testing.T) {
	b := &MemoryBackend{}
	s := New(b)
	require.NoError(t, s.Save())
	data, err := b.Read()
	require.NoError(t, err)
	require.JSONEq(t, `{"activeChatId":null,"chats":{}}`, string(data))
}

type failingBackend struct{ MemoryBackend }

func (f *failingBackend) Write([]byte) error { return errors.New("disk full") }

func TestSaveFailureKeepsPreviousData(t *testing.T) {
	b := &failingBackend{}
	b.Seed([]byte(`{"activeChatId":null,"chats":{}}`))

	s := New(b)
	populate(t, s)
	require.Error(t, s.Save())

	data, err := b.Read()
	require.NoError(t, err)
	require.JSONEq(t, `{"activeChatId":null,"chats":{}}`, string(data))
}

func TestFileBackendFailedWriteKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	b := NewFileBackend(path)
	require.NoError(t, b.Write([]byte(`{"chats":{}}`)))

	// Replacing a directory with a file fails; the original must survive.
	blocked := NewFileBackend(filepath.Join(path, "child.json"))
	require.Error(t, blocked.Write([]byte(`x`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"chats":{}}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestSortedOrder(t *testing.T) {
	s := New(&MemoryBackend{})
	older, newer := populate(t, s)

	sorted := s.Sorted()
	require.Equal(t, newer.ID, sorted[0].ID)
	require.Equal(t, older.ID, sorted[1].ID)
	require.Equal(t, []string{newer.ID, older.ID}, s.IDs())
}

func TestSetActiveUnknownClears(t *testing.T) {
	s := New(&MemoryBackend{})
	populate(t, s)
	s.SetActive("missing")
	require.Equal(t, "", s.ActiveID())
	_, ok := s.Active()
	require.False(t, ok)
}

func TestOpenBackend(t *testing.T) {
	b, closer, err := OpenBackend("memory", "")
	require.NoError(t, err)
	require.IsType(t, &MemoryBackend{}, b)
	require.NoError(t, closer.Close())

	b, closer, err = OpenBackend("sqlite", ":memory:")
	require.NoError(t, err)
	require.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, closer.Close())

	_, _, err = OpenBackend("redis", "")
	require.Error(t, err)
}
