package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/johndosdos/chatsync/internal/model"
)

// Message is a row of the messages table.
type Message struct {
	ID        int64
	UserID    string
	Username  string
	Text      string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// Model converts the row to the wire representation.
func (m Message) Model() model.Message {
	return model.Message{
		ID:        strconv.FormatInt(m.ID, 10),
		Text:      m.Text,
		UserID:    m.UserID,
		Username:  m.Username,
		CreatedAt: m.CreatedAt.Time,
	}
}

// ParseID converts a wire id into a row id. Ids that are not database ids
// (e.g. optimistic UUIDs) yield ErrNotFound.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n, nil
}

const columns = `id, user_id, username, text, created_at, updated_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.UserID, &m.Username, &m.Text, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

const listMessages = `-- name: ListMessages :many
SELECT ` + columns + ` FROM messages
ORDER BY created_at DESC, id DESC
LIMIT $1`

// ListMessages returns up to limit messages, newest first.
func (q *Queries) ListMessages(ctx context.Context, limit int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		i, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMessage = `-- name: GetMessage :one
SELECT ` + columns + ` FROM messages WHERE id = $1`

// GetMessage returns a single message.
func (q *Queries) GetMessage(ctx context.Context, id int64) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessage, id))
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (user_id, username, text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING ` + columns

// CreateMessageParams holds the columns set on insert. The id is generated
// by the database.
type CreateMessageParams struct {
	UserID    string
	Username  string
	Text      string
	CreatedAt pgtype.Timestamptz
}

// CreateMessage inserts a message and returns the stored row.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, createMessage,
		arg.UserID,
		arg.Username,
		arg.Text,
		arg.CreatedAt,
	))
}

const updateMessageText = `-- name: UpdateMessageText :one
UPDATE messages SET text = $2, updated_at = now()
WHERE id = $1
RETURNING ` + columns

// UpdateMessageText replaces the text of a message.
func (q *Queries) UpdateMessageText(ctx context.Context, id int64, text string) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, updateMessageText, id, text))
}

const deleteMessage = `-- name: DeleteMessage :one
DELETE FROM messages WHERE id = $1
RETURNING ` + columns

// DeleteMessage removes a message and returns the deleted row.
func (q *Queries) DeleteMessage(ctx context.Context, id int64) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, deleteMessage, id))
}
