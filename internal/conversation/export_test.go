package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/events"
)

func TestExportNothingToExport(t *testing.T) {
	f := newFixture(t)
	f.events.reset()
	writes := f.backend.Writes()

	exp, err := f.ctrl.ExportMarkdown()
	require.ErrorIs(t, err, ErrNothingToExport)
	require.Nil(t, exp)
	require.Equal(t, writes, f.backend.Writes())

	notice, ok := f.events.last(events.KindNotice)
	require.True(t, ok)
	require.Equal(t, "Nothing to export! Start a conversation first.", notice.Notice)
}

func TestExportMarkdown(t *testing.T) {
	f := newFixture(t, reply{content: "Hi <b>there</b><script>alert(1)</script>"})
	require.NoError(t, f.ctrl.Send(t.Context(), "Hello, world!"))

	exp, err := f.ctrl.ExportMarkdown()
	require.NoError(t, err)
	require.Equal(t, "hello_world.md", exp.Filename)

	content := string(exp.Content)
	require.True(t, strings.HasPrefix(content, "# Hello, world!\n\n"))
	require.NotContains(t, content, "You are a test persona.")
	require.Contains(t, content, "**You:**\nHello, world!\n\n---\n\n")
	require.Contains(t, content, "**AI:**\nHi &lt;b&gt;there&lt;/b&gt;&lt;script&gt;alert(1)&lt;/script&gt;\n\n---\n\n")
	require.NotContains(t, content, "<script>")
	require.Equal(t, 2, strings.Count(content, "*Sent: "))

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := exp.Save(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "hello_world.md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, exp.Content, data)
}

func TestRenderMarkdownTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	conv := &chat.Conversation{
		Title: "T",
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: "sys", Timestamp: ts},
			{Role: chat.RoleUser, Content: "q", Timestamp: ts},
		},
	}
	require.Equal(t, "# T\n\n*Sent: 2024-03-09 14:05:07*\n**You:**\nq\n\n---\n\n", renderMarkdown(conv))
}

func TestExportFilename(t *testing.T) {
	cases := map[string]string{
		"Hello":                 "hello.md",
		"Trip to Paris (2024)!": "trip_to_paris_2024.md",
		"  spaced   out  ":      "spaced_out.md",
		"snake_case-and-dash":   "snake_case-and-dash.md",
		"???":                   "conversation.md",
		"":                      "conversation.md",
	}
	for title, want := range cases {
		require.Equal(t, want, exportFilename(title), title)
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"no markup here":                       "no markup here",
		"a & b":                                "a &amp; b",
		"if a <b then c":                       "if a &lt;b then c",
		"Wrap it in `<div>` please":            "Wrap it in `&lt;div&gt;` please",
		"<style>p{}</style><b>bold</b>":        "&lt;style&gt;p{}&lt;/style&gt;&lt;b&gt;bold&lt;/b&gt;",
		"Escaped: &lt;script&gt;":              "Escaped: &amp;lt;script&amp;gt;",
		"it's \"quoted\"":                      "it&#39;s &#34;quoted&#34;",
		"line one\nline two <i>still</i> here": "line one\nline two &lt;i&gt;still&lt;/i&gt; here",
	}
	for in, want := range cases {
		require.Equal(t, want, plainText(in), in)
	}
}
