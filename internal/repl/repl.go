// Package repl is the terminal view. It renders the events published by the
// conversation controller and turns typed lines into controller intents.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/conversation"
	"github.com/comigor/jarvis-chat/internal/events"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Controller is the set of intents the REPL issues.
type Controller interface {
	Create(title string) error
	Switch(id string) error
	Delete(id string) error
	Send(ctx context.Context, text string) error
	EditMessage(ctx context.Context, index int, content string) error
	Regenerate(ctx context.Context) error
	ExportMarkdown() (*conversation.Export, error)
	Conversations() []*chat.Conversation
	Active() (*chat.Conversation, bool)
}

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// GlamourRenderer renders markdown with the named glamour style.
func GlamourRenderer(style string) Renderer {
	return func(md string) (string, error) {
		return glamour.Render(md, style)
	}
}

// PlainRenderer returns markdown unchanged.
func PlainRenderer(md string) (string, error) { return md, nil }

// REPL reads commands from in and writes the rendered session to out.
type REPL struct {
	ctrl      Controller
	in        *bufio.Scanner
	lines     <-chan string
	render    Renderer
	exportDir string
	log       *slog.Logger

	mu        sync.Mutex
	out       io.Writer
	shownID   string
	shownMsgs int
}

// Option customizes a REPL.
type Option func(*REPL)

// WithRenderer replaces the glamour renderer.
func WithRenderer(r Renderer) Option {
	return func(p *REPL) { p.render = r }
}

// WithExportDir sets the default /export directory.
func WithExportDir(dir string) Option {
	return func(p *REPL) { p.exportDir = dir }
}

func New(ctrl Controller, in io.Reader, out io.Writer, opts ...Option) *REPL {
	p := &REPL{
		ctrl:      ctrl,
		in:        bufio.NewScanner(in),
		out:       out,
		render:    GlamourRenderer("dark"),
		exportDir: ".",
		log:       logger.L.With("component", "repl"),
	}
	p.in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *REPL) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// Handle renders one event. It is safe to call from the bus goroutine.
func (p *REPL) Handle(e events.Event) {
	switch e.Kind {
	case events.KindConversation:
		if e.Conversation != nil {
			p.showConversation(e.Conversation)
		}
	case events.KindStatus:
		if e.State == string(conversation.StateSending) {
			p.printf("… waiting for a reply\n")
		}
	case events.KindNotice:
		p.printf("! %s\n", e.Notice)
	}
}

// showConversation prints what changed since the last render: the whole
// conversation after a switch or truncation, otherwise only new messages.
func (p *REPL) showConversation(conv *chat.Conversation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	from := p.shownMsgs
	if conv.ID != p.shownID || len(conv.Messages) < p.shownMsgs {
		fmt.Fprintf(p.out, "\n== %s ==\n", conv.Title)
		from = 0
	}
	for i := from; i < len(conv.Messages); i++ {
		p.writeMessage(i, conv.Messages[i])
	}
	p.shownID = conv.ID
	p.shownMsgs = len(conv.Messages)
}

func (p *REPL) writeMessage(i int, m chat.Message) {
	switch m.Role {
	case chat.RoleSystem:
		return
	case chat.RoleUser:
		fmt.Fprintf(p.out, "[%d] You: %s\n", i, m.Content)
	default:
		body, err := p.render(m.Content)
		if err != nil {
			p.log.Debug("markdown render failed", "error", err)
			body = m.Content
		}
		fmt.Fprintf(p.out, "[%d] AI:\n%s\n", i, strings.TrimRight(body, "\n"))
	}
}

// Run processes input until /quit, end of input or ctx cancellation.
func (p *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.lines = p.scan(ctx)

	p.printf("Type a message, or /help for commands.\n")
	for {
		p.printf("> ")
		line, ok := p.next(ctx)
		if !ok {
			p.printf("\n")
			if ctx.Err() != nil {
				return nil
			}
			return p.in.Err()
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := parseCommand(line)
		if err != nil {
			p.printf("! %s\n", err)
			continue
		}
		if cmd.name == cmdQuit {
			return nil
		}
		if err := p.exec(ctx, cmd); err != nil {
			p.printf("! %s\n", describe(err))
		}
	}
}

// scan feeds input lines to a channel so reads can be abandoned on ctx.
func (p *REPL) scan(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for p.in.Scan() {
			select {
			case ch <- p.in.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (p *REPL) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-p.lines:
		return line, ok
	}
}

func (p *REPL) exec(ctx context.Context, cmd command) error {
	switch cmd.name {
	case cmdSend:
		return p.ctrl.Send(ctx, cmd.text)
	case cmdNew:
		return p.ctrl.Create(cmd.arg)
	case cmdList:
		p.mu.Lock()
		defer p.mu.Unlock()
		active, _ := p.ctrl.Active()
		PrintList(p.out, p.ctrl.Conversations(), activeID(active))
		return nil
	case cmdSwitch:
		conv, err := p.pick(cmd.n)
		if err != nil {
			return err
		}
		return p.ctrl.Switch(conv.ID)
	case cmdDelete:
		conv, err := p.pick(cmd.n)
		if err != nil {
			return err
		}
		if !p.confirm(ctx, fmt.Sprintf("Delete %q? [y/N] ", conv.Title)) {
			p.printf("Kept.\n")
			return nil
		}
		return p.ctrl.Delete(conv.ID)
	case cmdEdit:
		return p.ctrl.EditMessage(ctx, cmd.n, cmd.text)
	case cmdRegen:
		return p.ctrl.Regenerate(ctx)
	case cmdExport:
		dir := cmd.arg
		if dir == "" {
			dir = p.exportDir
		}
		exp, err := p.ctrl.ExportMarkdown()
		if err != nil {
			return err
		}
		path, err := exp.Save(dir)
		if err != nil {
			return err
		}
		p.printf("Exported to %s\n", path)
		return nil
	case cmdHelp:
		p.printf("%s\n", helpText)
		return nil
	}
	return fmt.Errorf("unhandled command %s", cmd.name)
}

// pick resolves a 1-based position in the conversation list.
func (p *REPL) pick(n int) (*chat.Conversation, error) {
	convs := p.ctrl.Conversations()
	if n < 1 || n > len(convs) {
		return nil, fmt.Errorf("no conversation %d (see /list)", n)
	}
	return convs[n-1], nil
}

func (p *REPL) confirm(ctx context.Context, prompt string) bool {
	p.printf("%s", prompt)
	line, ok := p.next(ctx)
	if !ok {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func describe(err error) string {
	switch {
	case errors.Is(err, conversation.ErrNothingToExport):
		// The controller already emitted a notice.
		return "export skipped"
	case errors.Is(err, conversation.ErrRequestInFlight):
		return "still waiting for the previous reply"
	case errors.Is(err, conversation.ErrNotEditable):
		return "only your own messages can be edited"
	case errors.Is(err, conversation.ErrNotFound):
		return "no such message or conversation"
	default:
		return err.Error()
	}
}

func activeID(c *chat.Conversation) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// PrintList writes the numbered conversation list, marking the active one.
func PrintList(w io.Writer, convs []*chat.Conversation, active string) {
	for i, c := range convs {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d. %s  (%d messages, %s)\n", marker, i+1, c.Title, len(c.Messages)-1, c.LastModified.Local().Format("2006-01-02 15:04"))
	}
}
