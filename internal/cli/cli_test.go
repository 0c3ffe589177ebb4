package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatsync/internal/chat"
	"github.com/johndosdos/chatsync/internal/handler"
	"github.com/johndosdos/chatsync/internal/model"
	"github.com/johndosdos/chatsync/internal/testutil"
)

func newServer(t *testing.T) (*httptest.Server, *chat.Hub) {
	t.Helper()

	hub := chat.NewHub(testutil.NewMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(handler.NewRouter(hub, nil, handler.RateLimit{}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return srv, hub
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

var idPattern = regexp.MustCompile(`\(#(\d+)\)`)

func TestSendEditDelete(t *testing.T) {
	srv, hub := newServer(t)
	alice := uuid.NewString()
	as := []string{"--server", srv.URL, "--user-id", alice, "--username", "alice"}

	out, err := run(t, append([]string{"send", "hello", "world"}, as...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "hello world")

	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	_, err = run(t, "edit", id, "not", "yours", "--server", srv.URL, "--username", "mallory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to alice")

	out, err = run(t, append([]string{"edit", id, "hello", "again"}, as...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "hello again")

	out, err = run(t, append([]string{"delete", id}, as...)...)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+id+"\n", out)
	assert.Empty(t, hub.Messages())

	_, err = run(t, append([]string{"delete", id}, as...)...)
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	line := FormatMessage(model.DisplayMessage{
		ID:        "3",
		Text:      "hi",
		CreatedAt: time.Now(),
		User:      model.DisplayUser{Name: model.AnonymousUsername},
	})
	assert.True(t, strings.HasSuffix(line, "Anonymous (#3): hi"), line)
}

func TestPrintListOldestFirst(t *testing.T) {
	var buf bytes.Buffer
	printList(&buf, []model.Message{{ID: "2", Text: "newer"}, {ID: "1", Text: "older"}})

	out := buf.String()
	assert.Less(t, strings.Index(out, "older"), strings.Index(out, "newer"))
}
