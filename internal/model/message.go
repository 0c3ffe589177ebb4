// Package model defines data structure.
package model

import "time"

// AnonymousUsername is shown for messages whose author has no username.
const AnonymousUsername = "Anonymous"

// Message holds information about a single chat message.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the author's username or AnonymousUsername.
func (m Message) DisplayName() string {
	if m.Username == "" {
		return AnonymousUsername
	}
	return m.Username
}

// DisplayUser is the author block of a DisplayMessage.
type DisplayUser struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// DisplayMessage is the read-side record handed to whatever renders the chat.
type DisplayMessage struct {
	ID        string      `json:"_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	User      DisplayUser `json:"user"`
}

// Display converts a snapshot into display records, preserving order.
func Display(list []Message) []DisplayMessage {
	out := make([]DisplayMessage, 0, len(list))
	for _, m := range list {
		out = append(out, DisplayMessage{
			ID:        m.ID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
			User: DisplayUser{
				ID:   m.UserID,
				Name: m.DisplayName(),
			},
		})
	}
	return out
}
