package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/completion"
	"github.com/comigor/jarvis-chat/internal/events"
)

// ErrorMarker prefixes assistant messages that record a failed request.
const ErrorMarker = "❌ **Error:** "

const (
	networkErrorText   = "An unknown network error occurred."
	malformedErrorText = "Received an empty or malformed response from the AI."
)

func (c *Controller) machine(id string) *stateless.StateMachine {
	fsm, ok := c.requests[id]
	if !ok {
		fsm = newRequestMachine(id)
		c.requests[id] = fsm
	}
	return fsm
}

// beginLocked moves conv to Sending and returns the snapshot to send.
func (c *Controller) beginLocked(conv *chat.Conversation, evs *[]events.Event) (*chat.Conversation, error) {
	if err := c.machine(conv.ID).Fire(TriggerSend); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestInFlight, conv.ID)
	}
	*evs = append(*evs, events.Event{Kind: events.KindStatus, ConversationID: conv.ID, State: string(StateSending)})
	return conv.Clone(), nil
}

// request runs start under the lock; when it returns a snapshot, the snapshot
// is sent to the gateway and the outcome appended.
func (c *Controller) request(ctx context.Context, start func(evs *[]events.Event) (*chat.Conversation, error)) error {
	var snapshot *chat.Conversation
	err := c.mutate(func() ([]events.Event, error) {
		var evs []events.Event
		snap, err := start(&evs)
		snapshot = snap
		return evs, err
	})
	if snapshot == nil {
		return err
	}
	return errors.Join(err, c.complete(ctx, snapshot))
}

// complete performs the round-trip for snapshot and appends either the reply
// or an error-marked message to the conversation that issued it.
func (c *Controller) complete(ctx context.Context, snapshot *chat.Conversation) error {
	reply, sendErr := c.sender.Send(ctx, snapshot)

	return c.mutate(func() ([]events.Event, error) {
		trigger := TriggerSucceeded
		content := reply
		if sendErr != nil {
			trigger = TriggerFailed
			content = ErrorMarker + describe(sendErr)
			c.log.Warn("completion request failed", "conversation", snapshot.ID, "error", sendErr)
		}
		if err := c.machine(snapshot.ID).Fire(trigger); err != nil {
			c.log.Error("FSM fire error", "conversation", snapshot.ID, "trigger", trigger, "error", err)
		}

		evs := []events.Event{{Kind: events.KindStatus, ConversationID: snapshot.ID, State: string(StateIdle)}}
		conv, ok := c.store.Get(snapshot.ID)
		if !ok {
			delete(c.requests, snapshot.ID)
			c.log.Info("dropping reply for deleted conversation", "conversation", snapshot.ID)
			return evs, nil
		}
		conv.Append(chat.Message{Role: chat.RoleAssistant, Content: content, Timestamp: c.now()})

		err := c.persist(&evs)
		return append(evs, c.renderLocked()), err
	})
}

func describe(err error) string {
	var cerr *completion.Error
	if !errors.As(err, &cerr) {
		return networkErrorText
	}
	switch cerr.Kind {
	case completion.KindUpstream:
		if cerr.Message != "" {
			return cerr.Message
		}
		return networkErrorText
	case completion.KindMalformed:
		return malformedErrorText
	default:
		return networkErrorText
	}
}

// Send appends text as a user message to the active conversation and requests
// a reply. Blank input is ignored.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.request(ctx, func(evs *[]events.Event) (*chat.Conversation, error) {
		conv, ok := c.store.Active()
		if !ok {
			return nil, ErrNoActive
		}
		if c.stateLocked(conv.ID) == StateSending {
			return nil, fmt.Errorf("%w: %s", ErrRequestInFlight, conv.ID)
		}
		c.appendLocked(conv, chat.RoleUser, text)
		err := c.persist(evs)
		*evs = append(*evs, c.renderLocked())

		snap, ferr := c.beginLocked(conv, evs)
		return snap, errors.Join(err, ferr)
	})
}

// EditMessage replaces the content of the user message at index, discards
// every later message, and requests a new reply. Empty or unchanged content
// is a no-op.
func (c *Controller) EditMessage(ctx context.Context, index int, content string) error {
	content = strings.TrimSpace(content)
	return c.request(ctx, func(evs *[]events.Event) (*chat.Conversation, error) {
		conv, ok := c.store.Active()
		if !ok {
			return nil, ErrNoActive
		}
		if index < 0 || index >= len(conv.Messages) {
			return nil, fmt.Errorf("%w: message %d", ErrNotFound, index)
		}
		if conv.Messages[index].Role != chat.RoleUser {
			return nil, fmt.Errorf("%w: message %d is %s", ErrNotEditable, index, conv.Messages[index].Role)
		}
		if content == "" || content == conv.Messages[index].Content {
			return nil, nil
		}
		if c.stateLocked(conv.ID) == StateSending {
			return nil, fmt.Errorf("%w: %s", ErrRequestInFlight, conv.ID)
		}

		now := c.now()
		conv.Messages[index].Content = content
		conv.Messages[index].Timestamp = now
		conv.Truncate(index)
		conv.LastModified = now

		err := c.persist(evs)
		*evs = append(*evs, c.renderLocked())
		c.log.Info("message edited", "conversation", conv.ID, "index", index)

		snap, ferr := c.beginLocked(conv, evs)
		return snap, errors.Join(err, ferr)
	})
}

// Regenerate discards a trailing assistant reply, if any, and requests a new
// one over the remaining history. Conversations holding only the system
// prompt are left alone.
func (c *Controller) Regenerate(ctx context.Context) error {
	return c.request(ctx, func(evs *[]events.Event) (*chat.Conversation, error) {
		conv, ok := c.store.Active()
		if !ok {
			return nil, ErrNoActive
		}
		if len(conv.Messages) < 2 {
			return nil, nil
		}
		if c.stateLocked(conv.ID) == StateSending {
			return nil, fmt.Errorf("%w: %s", ErrRequestInFlight, conv.ID)
		}

		var err error
		if last, _ := conv.Last(); last.Role == chat.RoleAssistant {
			conv.Truncate(len(conv.Messages) - 2)
			err = c.persist(evs)
			*evs = append(*evs, c.renderLocked())
		}

		snap, ferr := c.beginLocked(conv, evs)
		return snap, errors.Join(err, ferr)
	})
}
