// Package chat owns the server side of the message list: it validates and
// persists mutations, publishes the resulting events and fans confirmed
// events out to subscribers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/chatsync/internal/database"
	"github.com/johndosdos/chatsync/internal/model"
)

var (
	// ErrInvalid is returned for malformed mutation requests.
	ErrInvalid = errors.New("invalid request")
	// ErrForbidden is returned when a user changes someone else's message.
	ErrForbidden = errors.New("only the author may change this message")
	// ErrStopped is returned by Submit once the hub has shut down.
	ErrStopped = errors.New("hub stopped")
)

// MaxTextLen bounds the length of a message text in bytes.
const MaxTextLen = 4096

// Store is the authoritative message storage.
type Store interface {
	ListMessages(ctx context.Context, limit int32) ([]database.Message, error)
	GetMessage(ctx context.Context, id int64) (database.Message, error)
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	UpdateMessageText(ctx context.Context, id int64, text string) (database.Message, error)
	DeleteMessage(ctx context.Context, id int64) (database.Message, error)
}

// LoadHistory returns the newest limit messages, newest first.
func LoadHistory(ctx context.Context, store Store, limit int) ([]model.Message, error) {
	rows, err := store.ListMessages(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load messages from database: %w", err)
	}

	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out, nil
}

// cleanText strips markup from s and returns it as plain text.
func cleanText(san sanitizer, s string) (string, error) {
	s = strings.TrimSpace(html.UnescapeString(san.Sanitize(s)))
	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty text", ErrInvalid)
	case len(s) > MaxTextLen:
		return "", fmt.Errorf("%w: text longer than %d bytes", ErrInvalid, MaxTextLen)
	}
	return s, nil
}

// execute runs req against store and returns the event describing the
// authoritative result.
func execute(ctx context.Context, store Store, san sanitizer, req model.MutationRequest) (model.Event, error) {
	switch req.Mutation {
	case model.Created:
		text, err := cleanText(san, req.Text)
		if err != nil {
			return model.Event{}, err
		}

		row, err := store.CreateMessage(ctx, database.CreateMessageParams{
			UserID:   req.UserID,
			Username: req.Username,
			Text:     text,
			CreatedAt: pgtype.Timestamptz{
				Time:  time.Now().UTC(),
				Valid: true,
			},
		})
		if err != nil {
			return model.Event{}, fmt.Errorf("failed to store message: %w", err)
		}
		return model.Event{Mutation: model.Created, Node: row.Model()}, nil

	case model.Updated:
		text, err := cleanText(san, req.Text)
		if err != nil {
			return model.Event{}, err
		}

		id, err := authorize(ctx, store, req)
		if err != nil {
			return model.Event{}, err
		}

		row, err := store.UpdateMessageText(ctx, id, text)
		if err != nil {
			return model.Event{}, fmt.Errorf("failed to update message %d: %w", id, err)
		}
		return model.Event{Mutation: model.Updated, Node: row.Model()}, nil

	case model.Deleted:
		id, err := authorize(ctx, store, req)
		if err != nil {
			return model.Event{}, err
		}

		row, err := store.DeleteMessage(ctx, id)
		if err != nil {
			return model.Event{}, fmt.Errorf("failed to delete message %d: %w", id, err)
		}
		return model.Event{Mutation: model.Deleted, Node: model.Message{ID: row.Model().ID}}, nil
	}

	return model.Event{}, fmt.Errorf("%w: unsupported mutation %q", ErrInvalid, req.Mutation)
}

// authorize checks that req targets an existing message written by the
// requesting user and returns its row id. Anonymous messages cannot be
// changed by anyone.
func authorize(ctx context.Context, store Store, req model.MutationRequest) (int64, error) {
	id, err := database.ParseID(req.ID)
	if err != nil {
		return 0, err
	}

	row, err := store.GetMessage(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get message %d: %w", id, err)
	}
	// Anonymous messages have no author to match against.
	if row.UserID == "" || row.UserID != req.UserID {
		return 0, ErrForbidden
	}
	return id, nil
}
