package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/chat"
	"github.com/johndosdos/chatsync/internal/model"
	"github.com/johndosdos/chatsync/internal/testutil"
	ws "github.com/johndosdos/chatsync/internal/websocket"
)

type testServer struct {
	*httptest.Server
	hub *chat.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return startTestServer(t, RateLimit{Requests: 100, Window: time.Second}, 0)
}

// startTestServer runs the router with a per-connection mutation limit and
// the given server write timeout (zero for none).
func startTestServer(t *testing.T, limit RateLimit, writeTimeout time.Duration) *testServer {
	t.Helper()

	hub := chat.NewHub(testutil.NewMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewUnstartedServer(NewRouter(hub, nil, limit))
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, userID, reqBody string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(reqBody))
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(internal.HeaderUserID, userID)
		req.Header.Set(internal.HeaderUsername, "user-"+userID[:4])
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var body []byte
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func (s *testServer) dialWs(t *testing.T, ctx context.Context, userID string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set(internal.HeaderUserID, userID)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	res, body := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMessagesLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := uuid.NewString()
	bob := uuid.NewString()

	res, body := s.do(t, http.MethodPost, "/messages", alice, `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))

	var created model.Message
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "hello", created.Text)
	assert.Equal(t, alice, created.UserID)

	res, body = s.do(t, http.MethodGet, "/messages", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list []model.Message
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	res, _ = s.do(t, http.MethodPut, "/messages/"+created.ID, bob, `{"text":"hijack"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = s.do(t, http.MethodPut, "/messages/"+created.ID, alice, `{"text":"hello, edited"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var edited model.Message
	require.NoError(t, json.Unmarshal(body, &edited))
	assert.Equal(t, "hello, edited", edited.Text)

	res, body = s.do(t, http.MethodDelete, "/messages/"+created.ID, alice, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"id":"`+created.ID+`"}`, string(body))

	res, _ = s.do(t, http.MethodDelete, "/messages/"+created.ID, alice, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	assert.Empty(t, s.hub.Messages())
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		userID   string
		body     string
		wantCode int
	}{
		{"empty text", "", `{"text":"  "}`, http.StatusBadRequest},
		{"bad json", "", `{"text":`, http.StatusBadRequest},
		{"bad user id", "zzzzzzzz", `{"text":"x"}`, http.StatusBadRequest},
		{"anonymous ok", "", `{"text":"x"}`, http.StatusCreated},
		{"escaped text at the limit", "", `{"text":"` + strings.Repeat(`\u00e9`, chat.MaxTextLen/2) + `"}`, http.StatusCreated},
		{"text over the limit", "", `{"text":"` + strings.Repeat("x", chat.MaxTextLen+1) + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := s.do(t, http.MethodPost, "/messages", tt.userID, tt.body)
			assert.Equal(t, tt.wantCode, res.StatusCode, string(body))
		})
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	s := newTestServer(t)
	alice := uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dialWs(t, ctx, alice)

	// Wait until the connection is registered before mutating.
	require.Eventually(t, func() bool {
		return s.hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	res, _ := s.do(t, http.MethodPost, "/messages", alice, `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var first model.Event
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, model.Created, first.Mutation)

	// Mutations can also be sent over the socket.
	require.NoError(t, wsjson.Write(ctx, conn, model.MutationRequest{
		Mutation: model.Deleted,
		ID:       first.Node.ID,
	}))

	var ev model.Event
	for ev.Mutation != model.Deleted {
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
	}
	assert.Equal(t, first.Node.ID, ev.Node.ID)

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestWebsocketRejectsMutations(t *testing.T) {
	s := startTestServer(t, RateLimit{Requests: 2, Window: time.Hour}, 0)
	alice := uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dialWs(t, ctx, alice)
	require.Eventually(t, func() bool {
		return s.hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, conn, model.MutationRequest{Mutation: model.Deleted, ID: "999"}))
	var missing model.Rejection
	require.NoError(t, wsjson.Read(ctx, conn, &missing))
	assert.Equal(t, model.Deleted, missing.Rejected)
	assert.Equal(t, "999", missing.ID)
	assert.NotEmpty(t, missing.Error)

	require.NoError(t, wsjson.Write(ctx, conn, model.MutationRequest{Mutation: model.Created, Text: "one"}))
	var created model.Event
	require.NoError(t, wsjson.Read(ctx, conn, &created))
	assert.Equal(t, model.Created, created.Mutation)

	require.NoError(t, wsjson.Write(ctx, conn, model.MutationRequest{Mutation: model.Created, Text: "two"}))
	var limited model.Rejection
	require.NoError(t, wsjson.Read(ctx, conn, &limited))
	assert.Equal(t, model.Created, limited.Rejected)
	assert.Equal(t, ws.ErrRateLimited.Error(), limited.Error)

	assert.Len(t, s.hub.Messages(), 1)
}

// readSSE returns the next event name and data from r, skipping keepalives.
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestSSEStreamsEvents(t *testing.T) {
	tests := []struct {
		name         string
		writeTimeout time.Duration
		wait         time.Duration
	}{
		{"no write timeout", 0, 0},
		{"outlives write timeout", 500 * time.Millisecond, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startTestServer(t, RateLimit{}, tt.writeTimeout)
			alice := uuid.NewString()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/events", nil)
			require.NoError(t, err)
			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer res.Body.Close()
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
			require.Equal(t, 1, s.hub.Subscribers())

			time.Sleep(tt.wait)

			created, body := s.do(t, http.MethodPost, "/messages", alice, `{"text":"hello"}`)
			require.Equal(t, http.StatusCreated, created.StatusCode, string(body))

			name, data := readSSE(t, bufio.NewReader(res.Body))
			assert.Equal(t, string(model.Created), name)

			var ev model.Event
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			assert.Equal(t, "hello", ev.Node.Text)
			assert.Equal(t, alice, ev.Node.UserID)
		})
	}
}
