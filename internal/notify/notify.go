// Package notify forwards unresolved user questions to a human operator.
package notify

import (
	"context"
	"log/slog"
)

// Notifier is the human-escalation collaborator. Notify is
// fire-and-forget: implementations log failures instead of propagating
// them, so a broken escalation channel never breaks the conversation.
type Notifier interface {
	Notify(ctx context.Context, displayName, question string)
}

// NoopNotifier logs escalations without delivering them anywhere. Used
// when no escalation channel is configured.
type NoopNotifier struct{}

// Notify records the escalation in the log only.
func (NoopNotifier) Notify(ctx context.Context, displayName, question string) {
	slog.Info("escalation requested but no notifier configured", "display_name", displayName, "question_length", len(question))
}
