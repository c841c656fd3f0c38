package audit

import (
	"context"
	"log/slog"
)

// Worker drains an inbox into a sink. Sink failures are logged and the event
// is skipped; audit delivery never blocks the wizard.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run returns when the inbox is closed and empty, or when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			if err := w.sink.Write(ctx, event); err != nil {
				w.logger.Error("audit sink write failed", "error", err, "action", event.Action)
			}
		}
	}
}
