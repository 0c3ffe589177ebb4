package chat

import "github.com/johndosdos/chatsync/internal/model"

// Subscriber receives every confirmed event the hub sees.
type Subscriber struct {
	UserID   string
	Username string
	Events   chan model.Event
}

// NewSubscriber returns a Subscriber with a buffered event channel.
func NewSubscriber(userID, username string) *Subscriber {
	return &Subscriber{
		UserID:   userID,
		Username: username,
		Events:   make(chan model.Event, 64),
	}
}

// Registration asks the hub to add Subscriber. Done is closed once it has.
type Registration struct {
	Subscriber *Subscriber
	Done       chan struct{}
}
