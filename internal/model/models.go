package model

// Mutation is the discriminator carried by every change event.
type Mutation string

const (
	Created Mutation = "CREATED"
	Updated Mutation = "UPDATED"
	Deleted Mutation = "DELETED"
)

// Known reports whether m is one of the mutations this version understands.
func (m Mutation) Known() bool {
	switch m {
	case Created, Updated, Deleted:
		return true
	}
	return false
}

// Event is a single change to the message list, used for NATS payloads,
// websocket frames and optimistic updates alike. For Deleted only Node.ID
// is meaningful.
type Event struct {
	Mutation Mutation `json:"mutation"`
	Node     Message  `json:"node"`
}

// MutationRequest is what a client sends to change the list. The server
// answers with the authoritative Event.
type MutationRequest struct {
	Mutation Mutation `json:"mutation"`
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text,omitempty"`

	// Author of the request. Filled in by the server from the connection,
	// never trusted from the payload.
	UserID   string `json:"-"`
	Username string `json:"-"`
}

// Rejection is sent on a websocket instead of an Event when one of the
// client's own mutation frames was not applied.
type Rejection struct {
	Error    string   `json:"error"`
	Rejected Mutation `json:"rejected,omitempty"`
	ID       string   `json:"id,omitempty"`
}
