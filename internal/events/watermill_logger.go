package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// slogLevelTrace sits below debug; watermill's trace output is very chatty.
const slogLevelTrace = slog.LevelDebug - 4

// WatermillLogger adapts a slog.Logger to watermill.LoggerAdapter.
type WatermillLogger struct {
	logger *slog.Logger
}

// NewWatermillLogger wraps logger for use by watermill components.
func NewWatermillLogger(logger *slog.Logger) *WatermillLogger {
	return &WatermillLogger{logger: logger}
}

func attrs(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(attrs(fields), "error", err)...)
}

// Info maps to debug because watermill logs every subscription at info.
func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Log(context.Background(), slogLevelTrace, msg, attrs(fields)...)
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{logger: w.logger.With(attrs(fields)...)}
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)
