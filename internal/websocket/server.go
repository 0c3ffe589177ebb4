package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/johndosdos/chatsync/internal/chat"
	"github.com/johndosdos/chatsync/internal/model"
)

// ErrRateLimited is reported to a client sending mutations faster than its
// limiter allows.
var ErrRateLimited = errors.New("mutation rate limit exceeded")

// Serve registers the client with the hub, streams events to it and reads
// its mutation requests until the connection closes.
func (c *Client) Serve(ctx context.Context) {
	reg := chat.Registration{Subscriber: c.sub, Done: make(chan struct{})}
	select {
	case c.hub.Register <- reg:
		<-reg.Done
	case <-c.hub.Done():
		c.conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	case <-ctx.Done():
		c.conn.CloseNow()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.WriteEvents(ctx)
	c.ReadMutations(ctx)
}

// ReadMutations reads mutation requests from the connection and submits them
// to the hub. Accepted mutations reach the client through the event stream;
// rejected ones are answered with a model.Rejection frame.
func (c *Client) ReadMutations(ctx context.Context) {
	defer func() {
		select {
		case c.hub.Unregister <- c.sub:
		case <-c.hub.Done():
		case <-ctx.Done():
		}
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				slog.WarnContext(ctx, "websocket read failed", "error", err, "user_id", c.UserID)
			}
			return
		}

		// The app only supports text format for now...
		if msgType != websocket.MessageText {
			continue
		}

		var req model.MutationRequest
		if err := json.Unmarshal(p, &req); err != nil {
			slog.WarnContext(ctx, "failed to process payload from client", "error", err)
			c.reject(ctx, req, err)
			continue
		}
		req.UserID = c.UserID
		req.Username = c.Username

		if c.messageLim != nil && !c.messageLim.Allow() {
			slog.WarnContext(ctx, "mutation rate limit exceeded", "user_id", c.UserID)
			c.reject(ctx, req, ErrRateLimited)
			continue
		}

		if _, err := c.hub.Submit(ctx, req); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, chat.ErrStopped) {
				return
			}
			slog.InfoContext(ctx, "mutation from websocket rejected",
				"error", err,
				"mutation", req.Mutation,
				"user_id", c.UserID)
			c.reject(ctx, req, err)
		}
	}
}

// reject tells the client that req was not applied, so it can drop any
// optimistic state it holds for it.
func (c *Client) reject(ctx context.Context, req model.MutationRequest, cause error) {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := wsjson.Write(writeCtx, c.conn, model.Rejection{
		Error:    cause.Error(),
		Rejected: req.Mutation,
		ID:       req.ID,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to write rejection", "error", err, "user_id", c.UserID)
	}
}
