package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/jarvis-chat/internal/completion"
	"github.com/comigor/jarvis-chat/internal/conversation"
	"github.com/comigor/jarvis-chat/internal/events"
	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/repl"
	"github.com/comigor/jarvis-chat/internal/session"
)

// openController builds a controller over the configured state backend.
func openController(emitter events.Emitter) (*conversation.Controller, io.Closer, error) {
	backend, closer, err := session.OpenBackend(cfg.Client.StateBackend, cfg.Client.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state backend: %w", err)
	}

	var opts []completion.Option
	if cfg.Client.ModelID != "" {
		opts = append(opts, completion.WithModelID(cfg.Client.ModelID))
	}
	ctrl := conversation.New(
		session.New(backend),
		completion.New(cfg.Client.GatewayURL, opts...),
		conversation.WithEmitter(emitter),
		conversation.WithSystemPrompt(cfg.Client.SystemPrompt),
	)
	if err := ctrl.Open(); err != nil {
		logger.L.Warn("session state could not be saved", "error", err)
	}
	return ctrl, closer, nil
}

func newChatCmd() *cobra.Command {
	var (
		logFile   string
		style     string
		exportDir string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			logger.Redirect(f)

			bus := events.NewBus()
			defer bus.Close()

			ctrl, closer, err := openController(bus)
			if err != nil {
				return err
			}
			defer closer.Close()

			view := repl.New(ctrl, os.Stdin, os.Stdout,
				repl.WithRenderer(repl.GlamourRenderer(style)),
				repl.WithExportDir(exportDir),
			)
			if err := bus.Subscribe(cmd.Context(), view.Handle); err != nil {
				return err
			}
			// The first render happened before the view subscribed.
			if conv, ok := ctrl.Active(); ok {
				view.Handle(events.Event{Kind: events.KindConversation, ConversationID: conv.ID, Conversation: conv})
			}
			return view.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "jarvis-chat.log", "file receiving log output during the session")
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for assistant replies (dark, light, notty, ascii)")
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "default directory for /export")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, closer, err := openController(events.Discard)
			if err != nil {
				return err
			}
			defer closer.Close()

			active, _ := ctrl.Active()
			id := ""
			if active != nil {
				id = active.ID
			}
			repl.PrintList(cmd.OutOrStdout(), ctrl.Conversations(), id)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [dir]",
		Short: "Export the active conversation as markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			ctrl, closer, err := openController(events.EmitterFunc(func(e events.Event) {
				if e.Kind == events.KindNotice {
					fmt.Fprintln(cmd.ErrOrStderr(), e.Notice)
				}
			}))
			if err != nil {
				return err
			}
			defer closer.Close()

			exp, err := ctrl.ExportMarkdown()
			if err != nil {
				return err
			}
			path, err := exp.Save(dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
