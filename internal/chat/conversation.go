package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTitle names conversations created by an explicit "new chat".
	DefaultTitle = "New Conversation"
	// WelcomeTitle names the conversation created on first run.
	WelcomeTitle = "Welcome Chat"

	titleLimit  = 30
	titleSuffix = "…"
)

// Conversation is a titled, ordered message history. Messages[0] is always
// the system prompt.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	LastModified time.Time `json:"lastModified"`
}

// NewID returns a time-ordered unique conversation id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "chat-" + uuid.NewString()
	}
	return "chat-" + id.String()
}

// New creates a conversation seeded with the given system prompt.
func New(title, systemPrompt string, now time.Time) *Conversation {
	if title == "" {
		title = DefaultTitle
	}
	return &Conversation{
		ID:    NewID(),
		Title: title,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt, Timestamp: now},
		},
		LastModified: now,
	}
}

// HasUserMessage reports whether any user-authored message exists.
func (c *Conversation) HasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// Last returns the final message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Append pushes a message and bumps LastModified.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
	c.LastModified = m.Timestamp
}

// Truncate discards every message after index i.
func (c *Conversation) Truncate(i int) {
	if i+1 < len(c.Messages) {
		clear(c.Messages[i+1:])
		c.Messages = c.Messages[:i+1]
	}
}

// EnsureSystemPrompt prepends a system message when the first message is not
// one. It reports whether a repair was made.
func (c *Conversation) EnsureSystemPrompt(prompt string, now time.Time) bool {
	if len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem {
		return false
	}
	c.Messages = append([]Message{{Role: RoleSystem, Content: prompt, Timestamp: now}}, c.Messages...)
	return true
}

// Clone returns a deep copy safe to hand outside the owning store.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}

// DeriveTitle builds a title from the first user message: the first 30
// characters, with an ellipsis when truncated.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + titleSuffix
}
