package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/johndosdos/chatsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    model.Event
		wantErr bool
	}{
		{
			name: "created",
			data: `{"mutation":"CREATED","node":{"id":"1","text":"a","created_at":"2024-01-02T03:04:05Z"}}`,
			want: model.Event{Mutation: model.Created, Node: model.Message{
				ID: "1", Text: "a", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			}},
		},
		{
			name: "deleted carries only id",
			data: `{"mutation":"DELETED","node":{"id":"9"}}`,
			want: model.Event{Mutation: model.Deleted, Node: model.Message{ID: "9"}},
		},
		{
			name: "unknown mutation passes through",
			data: `{"mutation":"PINNED","node":{"id":"3"}}`,
			want: model.Event{Mutation: "PINNED", Node: model.Message{ID: "3"}},
		},
		{name: "missing id", data: `{"mutation":"CREATED","node":{"text":"a"}}`, wantErr: true},
		{name: "garbage", data: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	ev := model.Event{Mutation: model.Updated, Node: model.Message{ID: "5", Text: "x", Username: "bob"}}
	data, err := Encode(ev)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestPublishWithoutJetStream(t *testing.T) {
	var p *Publisher
	_, err := p.Publish(context.Background(), model.Event{})
	assert.True(t, errors.Is(err, ErrNoJetStream))

	_, err = NewPublisher(nil).Publish(context.Background(), model.Event{})
	assert.True(t, errors.Is(err, ErrNoJetStream))
}
