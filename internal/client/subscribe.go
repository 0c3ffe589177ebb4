package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/johndosdos/chatsync/internal/model"
)

// Subscribe streams confirmed events from the server into the local list,
// in the order they arrive, until ctx is done or the server closes the
// connection. It returns nil in both of those cases.
func (c *Client) Subscribe(ctx context.Context) error {
	wsURL := c.endpoint("/ws")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	c.setHeaders(header)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer conn.CloseNow()

	c.logger.InfoContext(ctx, "subscribed to message feed", "url", wsURL)

	for {
		typ, p, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("subscription closed: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var rej model.Rejection
		if err := json.Unmarshal(p, &rej); err == nil && rej.Error != "" {
			c.logger.WarnContext(ctx, "server rejected mutation",
				"error", rej.Error,
				"mutation", rej.Rejected,
				"id", rej.ID)
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(p, &ev); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable event", "error", err)
			continue
		}

		c.cache.Apply(ev)
	}
}
