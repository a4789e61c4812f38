// Package conversation implements every user intent that mutates the session:
// creating, switching and deleting conversations, appending, editing and
// regenerating messages, and exporting. It owns the session store and the
// per-conversation request state machines, and reports changes as render
// events.
package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/completion"
	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/events"
	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/session"
)

var (
	ErrNotFound        = errors.New("conversation or message not found")
	ErrNoActive        = errors.New("no active conversation")
	ErrInvalidRole     = errors.New("role must be user or assistant")
	ErrNotEditable     = errors.New("only user messages can be edited")
	ErrRequestInFlight = errors.New("a request is already in flight for this conversation")
	ErrNothingToExport = errors.New("nothing to export")
)

// Controller is the single entry point for conversation mutations. All store
// access happens under mu; the gateway round-trip runs without it.
type Controller struct {
	mu       sync.Mutex
	store    *session.Store
	sender   completion.Sender
	emitter  events.Emitter
	prompt   string
	now      func() time.Time
	requests map[string]*stateless.StateMachine
	log      *slog.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithEmitter sets where render events go.
func WithEmitter(e events.Emitter) Option {
	return func(c *Controller) { c.emitter = e }
}

// WithSystemPrompt sets the persona prompt seeded into new conversations.
func WithSystemPrompt(p string) Option {
	return func(c *Controller) { c.prompt = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller over store, sending completions through sender.
func New(store *session.Store, sender completion.Sender, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		sender:   sender,
		emitter:  events.Discard,
		prompt:   config.DefaultSystemPrompt,
		now:      time.Now,
		requests: make(map[string]*stateless.StateMachine),
		log:      logger.L.With("component", "conversation"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// mutate runs fn under the lock and publishes the resulting events after
// releasing it, so slow subscribers never hold up other intents.
func (c *Controller) mutate(fn func() ([]events.Event, error)) error {
	c.mu.Lock()
	evs, err := fn()
	c.mu.Unlock()
	for _, e := range evs {
		c.emitter.Emit(e)
	}
	return err
}

// persist saves the store. Failures are logged and reported to the view; the
// in-memory state is kept.
func (c *Controller) persist(evs *[]events.Event) error {
	if err := c.store.Save(); err != nil {
		c.log.Error("failed to save session state", "error", err)
		*evs = append(*evs, events.Event{Kind: events.KindNotice, Notice: "Could not save conversations: " + err.Error()})
		return err
	}
	return nil
}

// renderLocked builds a full re-render event for the active conversation.
func (c *Controller) renderLocked() events.Event {
	e := events.Event{Kind: events.KindConversation, List: c.summariesLocked()}
	if conv, ok := c.store.Active(); ok {
		e.ConversationID = conv.ID
		e.Conversation = conv.Clone()
	}
	return e
}

func (c *Controller) summariesLocked() []events.Summary {
	sorted := c.store.Sorted()
	out := make([]events.Summary, 0, len(sorted))
	for _, conv := range sorted {
		out = append(out, events.Summary{ID: conv.ID, Title: conv.Title, Active: conv.ID == c.store.ActiveID()})
	}
	return out
}

// Open loads durable state, repairs conversations missing their system
// prompt, and creates the welcome conversation on first run.
func (c *Controller) Open() error {
	return c.mutate(func() ([]events.Event, error) {
		c.store.Load()

		var evs []events.Event
		repaired := false
		for _, conv := range c.store.Sorted() {
			if conv.EnsureSystemPrompt(c.prompt, c.now()) {
				c.log.Warn("repaired conversation without system prompt", "id", conv.ID)
				repaired = true
			}
		}

		if c.store.NeedsInitialConversation() {
			return c.createLocked(chat.WelcomeTitle)
		}
		var err error
		if repaired {
			err = c.persist(&evs)
		}
		return append(evs, c.renderLocked()), err
	})
}

// Create starts a new conversation and makes it active. An empty title uses
// the default.
func (c *Controller) Create(title string) error {
	return c.mutate(func() ([]events.Event, error) {
		return c.createLocked(title)
	})
}

func (c *Controller) createLocked(title string) ([]events.Event, error) {
	conv := chat.New(title, c.prompt, c.now())
	c.store.Put(conv)
	c.store.SetActive(conv.ID)

	var evs []events.Event
	err := c.persist(&evs)
	c.log.Info("conversation created", "id", conv.ID, "title", conv.Title)
	return append(evs, c.renderLocked()), err
}

// Switch makes id the active conversation. Switching to the active one is a
// no-op.
func (c *Controller) Switch(id string) error {
	return c.mutate(func() ([]events.Event, error) {
		if _, ok := c.store.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if c.store.ActiveID() == id {
			return nil, nil
		}
		c.store.SetActive(id)

		var evs []events.Event
		err := c.persist(&evs)
		return append(evs, c.renderLocked()), err
	})
}

// Delete removes a conversation. Callers are expected to have confirmed the
// deletion with the user. If the active conversation is removed, the most
// recently modified remaining one becomes active; if none remain, a fresh
// conversation is created.
func (c *Controller) Delete(id string) error {
	return c.mutate(func() ([]events.Event, error) {
		if _, ok := c.store.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		c.store.Remove(id)
		if fsm, ok := c.requests[id]; ok && fsm.MustState() != StateSending {
			delete(c.requests, id)
		}
		c.log.Info("conversation deleted", "id", id)

		if c.store.Len() == 0 {
			return c.createLocked("")
		}
		if c.store.ActiveID() == id || c.store.ActiveID() == "" {
			c.store.SetActive(c.store.Sorted()[0].ID)
		}

		var evs []events.Event
		err := c.persist(&evs)
		return append(evs, c.renderLocked()), err
	})
}

// AppendMessage adds a user or assistant message to the active conversation.
// The first user message also sets the conversation title.
func (c *Controller) AppendMessage(role chat.Role, content string) error {
	return c.mutate(func() ([]events.Event, error) {
		if role != chat.RoleUser && role != chat.RoleAssistant {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
		}
		conv, ok := c.store.Active()
		if !ok {
			return nil, ErrNoActive
		}
		c.appendLocked(conv, role, content)

		var evs []events.Event
		err := c.persist(&evs)
		return append(evs, c.renderLocked()), err
	})
}

func (c *Controller) appendLocked(conv *chat.Conversation, role chat.Role, content string) {
	if role == chat.RoleUser && !conv.HasUserMessage() {
		conv.Title = chat.DeriveTitle(content)
	}
	conv.Append(chat.Message{Role: role, Content: content, Timestamp: c.now()})
}

// Active returns a copy of the active conversation.
func (c *Controller) Active() (*chat.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.Active()
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Conversations returns copies of every conversation in display order.
func (c *Controller) Conversations() []*chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := c.store.Sorted()
	out := make([]*chat.Conversation, 0, len(sorted))
	for _, conv := range sorted {
		out = append(out, conv.Clone())
	}
	return out
}

// State reports the request state of a conversation.
func (c *Controller) State(id string) RequestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(id)
}

func (c *Controller) stateLocked(id string) RequestState {
	fsm, ok := c.requests[id]
	if !ok {
		return StateIdle
	}
	return fsm.MustState().(RequestState)
}
