// Package notify carries best-effort out-of-band messages (owner DMs,
// settlement results). Failures are the caller's to swallow; no notifier
// error may fail the primary operation.
package notify

import (
	"context"
	"log/slog"
)

type Notifier interface {
	Notify(ctx context.Context, actorID, message string) error
}

// LogNotifier writes notifications to the log. Default when no chat
// transport is attached.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Notify(_ context.Context, actorID, message string) error {
	n.log.Info("notification", "actor_id", actorID, "message", message)
	return nil
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, actorID, message string) error

func (f Func) Notify(ctx context.Context, actorID, message string) error {
	return f(ctx, actorID, message)
}
