// Package events carries render notifications from the conversation
// controller to whatever view is attached.
package events

import (
	"github.com/comigor/jarvis-chat/internal/chat"
)

// Kind discriminates render events.
type Kind string

const (
	// KindConversation asks the view to fully re-render the active
	// conversation and the conversation list.
	KindConversation Kind = "conversation"
	// KindStatus reports a request state change for one conversation.
	KindStatus Kind = "status"
	// KindNotice carries a user-visible message.
	KindNotice Kind = "notice"
)

// Summary is one row of the conversation list.
type Summary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Event is a single render notification.
type Event struct {
	Kind           Kind               `json:"kind"`
	ConversationID string             `json:"conversationId,omitempty"`
	Conversation   *chat.Conversation `json:"conversation,omitempty"`
	List           []Summary          `json:"list,omitempty"`
	State          string             `json:"state,omitempty"`
	Notice         string             `json:"notice,omitempty"`
}

// Emitter receives render events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
