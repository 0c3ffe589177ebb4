package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/chat"
)

// StreamSSE streams confirmed events as server-sent events, for clients
// that cannot hold a websocket. Each event is named after its mutation.
func StreamSSE(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		author := internal.AuthorFromContext(ctx)

		w.Header().Set("X-Accel-Buffering", "no")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Content-Type", "text/event-stream")

		// We'll register our new subscriber to the central hub.
		sub := chat.NewSubscriber(author.UserID, author.Username)
		reg := chat.Registration{Subscriber: sub, Done: make(chan struct{})}
		select {
		case hub.Register <- reg:
			<-reg.Done
		case <-hub.Done():
			writeError(w, r, chat.ErrStopped)
			return
		case <-ctx.Done():
			return
		}
		defer func() {
			select {
			case hub.Unregister <- sub:
			case <-hub.Done():
			}
		}()

		// The stream outlives the server's WriteTimeout.
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			slog.WarnContext(ctx, "could not clear write deadline", "error", err)
		}

		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			slog.WarnContext(ctx, "streaming not supported", "error", err)
			return
		}

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}

				data, err := json.Marshal(ev)
				if err != nil {
					slog.ErrorContext(ctx, "failed to encode event", "error", err)
					continue
				}

				fmt.Fprintf(w, "event: %s\n", ev.Mutation) //nolint:errcheck
				fmt.Fprintf(w, "data: %s\n\n", data)       //nolint:errcheck

				if err := rc.Flush(); err != nil {
					slog.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ticker.C:
				fmt.Fprint(w, ": \n\n") //nolint:errcheck
				if err := rc.Flush(); err != nil {
					slog.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}
