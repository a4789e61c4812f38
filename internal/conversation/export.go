package conversation

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/events"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var (
	filenameDrop  = regexp.MustCompile(`[^\w\s-]`)
	filenameSpace = regexp.MustCompile(`\s+`)
)

// Export is a rendered markdown document ready to be written out.
type Export struct {
	Filename string
	Content  []byte
}

// Save writes the document into dir and returns its path.
func (e *Export) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, e.Filename)
	if err := os.WriteFile(path, e.Content, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ExportMarkdown renders the active conversation as markdown. It returns
// ErrNothingToExport, and notifies the view, when the conversation holds only
// its system prompt.
func (c *Controller) ExportMarkdown() (*Export, error) {
	var out *Export
	err := c.mutate(func() ([]events.Event, error) {
		conv, ok := c.store.Active()
		if !ok || len(conv.Messages) <= 1 {
			return []events.Event{{Kind: events.KindNotice, Notice: "Nothing to export! Start a conversation first."}}, ErrNothingToExport
		}
		out = &Export{
			Filename: exportFilename(conv.Title),
			Content:  []byte(renderMarkdown(conv)),
		}
		return nil, nil
	})
	return out, err
}

func renderMarkdown(conv *chat.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", plainText(conv.Title))
	for _, m := range conv.Messages {
		if m.Role == chat.RoleSystem {
			continue
		}
		prefix := "**AI:**"
		if m.Role == chat.RoleUser {
			prefix = "**You:**"
		}
		fmt.Fprintf(&b, "*Sent: %s*\n", m.Timestamp.In(time.Local).Format(exportTimeLayout))
		fmt.Fprintf(&b, "%s\n%s\n\n---\n\n", prefix, plainText(m.Content))
	}
	return b.String()
}

// plainText escapes content as a text node so any markup it carries is kept
// as literal characters instead of being interpreted by a renderer.
func plainText(content string) string {
	if !strings.ContainsAny(content, "&'<>\"\r") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div></div>"))
	if err != nil {
		return html.EscapeString(content)
	}
	out, err := doc.Find("div").SetText(content).Html()
	if err != nil {
		return html.EscapeString(content)
	}
	return out
}

func exportFilename(title string) string {
	name := filenameDrop.ReplaceAllString(title, "")
	name = filenameSpace.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.ToLower(name)
	if name == "" {
		name = "conversation"
	}
	return name + ".md"
}
