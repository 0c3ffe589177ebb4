package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/chat"
	ws "github.com/johndosdos/chatsync/internal/websocket"
)

// RateLimit bounds how often a single connection may submit mutations.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// ServeWs handles the client's websocket connection upgrade.
func ServeWs(hub *chat.Hub, limit RateLimit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to upgrade connection to websocket", "error", err)
			return
		}

		author := internal.AuthorFromContext(ctx)
		slog.InfoContext(ctx, "websocket connected",
			"user_id", author.UserID,
			"username", author.Username)

		c := ws.NewClient(conn, hub, author.UserID, author.Username)
		if limit.Requests > 0 {
			c.SetMessageLimiter(limit.Requests, limit.Window)
		}

		// We block on Serve because the request context is cancelled as
		// soon as we return from the handler.
		c.Serve(ctx)
	}
}
