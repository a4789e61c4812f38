package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/conversation"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "list", "export"} {
		require.True(t, names[want], want)
	}
}

func TestListAndExport(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	writeConfig(t, "log_level: error\nclient:\n  state_backend: sqlite\n  state_path: "+statePath+"\n")

	out, _, err := execute(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "* 1. Welcome Chat")

	_, stderr, err := execute(t, "export", t.TempDir())
	require.ErrorIs(t, err, conversation.ErrNothingToExport)
	require.Contains(t, stderr, "Nothing to export!")
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	cancel()

	require.NoError(t, <-done)
}
