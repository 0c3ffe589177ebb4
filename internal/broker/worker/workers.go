// Package worker adapts broker deliveries to the chat hub.
package worker

import (
	"context"
	"log/slog"

	"github.com/johndosdos/chatsync/internal/model"
)

// Forward returns a broker handler that pushes each event onto dst. Delivery
// blocks so the stream order is kept; it gives up once ctx is done.
func Forward(ctx context.Context, dst chan<- model.Event) func(model.Event) {
	return func(ev model.Event) {
		select {
		case dst <- ev:
		case <-ctx.Done():
			slog.Debug("dropping event after shutdown",
				"mutation", ev.Mutation,
				"id", ev.Node.ID)
		}
	}
}
