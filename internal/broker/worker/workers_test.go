package worker

import (
	"context"
	"testing"
	"time"

	"github.com/johndosdos/chatsync/internal/model"
)

func TestForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dst := make(chan model.Event, 1)
	handle := Forward(ctx, dst)

	ev := model.Event{Mutation: model.Created, Node: model.Message{ID: "1"}}
	handle(ev)

	select {
	case got := <-dst:
		if got != ev {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
}

func TestForwardStopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := Forward(ctx, make(chan model.Event))
	cancel()

	done := make(chan struct{})
	go func() {
		handle(model.Event{Mutation: model.Deleted, Node: model.Message{ID: "1"}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler blocked after context was cancelled")
	}
}
