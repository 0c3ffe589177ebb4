// Package websocket streams confirmed message events to connected clients
// and accepts mutation requests from them.
package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/johndosdos/chatsync/internal/chat"
)

const writeTimeout = 10 * time.Second

type Client struct {
	UserID     string
	Username   string
	conn       *websocket.Conn
	hub        *chat.Hub
	sub        *chat.Subscriber
	messageLim *rate.Limiter
}

func NewClient(conn *websocket.Conn, hub *chat.Hub, userID, username string) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		conn:     conn,
		hub:      hub,
		sub:      chat.NewSubscriber(userID, username),
	}
}

// SetMessageLimiter allows requests mutations per window, bursting up to
// requests.
func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// WriteEvents writes every event delivered by the hub as a JSON frame until
// the subscription is closed or ctx is done.
func (c *Client) WriteEvents(ctx context.Context) {
	for {
		select {
		case ev, ok := <-c.sub.Events:
			// The hub closed our channel: we were unregistered or it stopped.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				slog.WarnContext(ctx, "failed to write event",
					"error", err,
					"mutation", ev.Mutation,
					"user_id", c.UserID)
				return
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}
