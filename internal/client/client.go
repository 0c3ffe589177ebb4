// Package client is a chat client that keeps a local copy of the message
// list. Mutations are shown optimistically and reconciled with the server's
// answer; changes made elsewhere arrive over a websocket subscription.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/model"
	"github.com/johndosdos/chatsync/internal/reconcile"
)

// ErrStatus is wrapped by every StatusError.
var ErrStatus = errors.New("unexpected status")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Client talks to a chat server on behalf of one author.
type Client struct {
	base     *url.URL
	http     *http.Client
	author   internal.Author
	cache    *reconcile.Cache
	logger   *slog.Logger
	onChange func([]model.Message)
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithOnChange registers fn to be called with every new snapshot.
func WithOnChange(fn func([]model.Message)) Option {
	return func(c *Client) {
		c.onChange = fn
	}
}

// New returns a Client for the server at baseURL.
func New(baseURL string, author internal.Author, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		author: author,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	cacheOpts := []reconcile.CacheOption{reconcile.WithLogger(c.logger)}
	if c.onChange != nil {
		cacheOpts = append(cacheOpts, reconcile.WithOnChange(c.onChange))
	}
	c.cache = reconcile.NewCache(cacheOpts...)
	return c, nil
}

// Author returns who the client acts as.
func (c *Client) Author() internal.Author {
	return c.author
}

// Snapshot returns the current message list, newest first.
func (c *Client) Snapshot() []model.Message {
	return c.cache.Snapshot()
}

// Messages returns the current list as display records.
func (c *Client) Messages() []model.DisplayMessage {
	return model.Display(c.cache.Snapshot())
}

// Pending returns how many mutations await the server's answer.
func (c *Client) Pending() int {
	return c.cache.Pending()
}

// CanModify reports whether msg was written by this client's author and may
// therefore be edited or deleted.
func (c *Client) CanModify(msg model.Message) bool {
	return msg.UserID != "" && msg.UserID == c.author.UserID
}

// Load replaces the local list with the server's recent messages.
func (c *Client) Load(ctx context.Context) error {
	var list []model.Message
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &list); err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	c.cache.Reset(list)
	return nil
}

// AddMessage shows a new message at once under a provisional id and replaces
// it with the stored message when the server answers.
func (c *Client) AddMessage(ctx context.Context, text string) (model.Message, error) {
	optimistic := model.Message{
		ID:        uuid.NewString(),
		Text:      text,
		UserID:    c.author.UserID,
		Username:  c.author.Username,
		CreatedAt: c.now().UTC(),
	}
	t := c.cache.Optimistic(model.Event{Mutation: model.Created, Node: optimistic})

	var stored model.Message
	if err := c.do(ctx, http.MethodPost, "/messages", map[string]string{"text": text}, &stored); err != nil {
		c.cache.Rollback(t)
		return model.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	c.cache.Commit(t, model.Event{Mutation: model.Created, Node: stored})
	return stored, nil
}

// EditMessage shows msg with its new text at once and reconciles with the
// stored message when the server answers.
func (c *Client) EditMessage(ctx context.Context, msg model.Message, text string) (model.Message, error) {
	optimistic := msg
	optimistic.Text = text
	t := c.cache.Optimistic(model.Event{Mutation: model.Updated, Node: optimistic})

	var stored model.Message
	path := "/messages/" + url.PathEscape(msg.ID)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"text": text}, &stored); err != nil {
		c.cache.Rollback(t)
		return model.Message{}, fmt.Errorf("failed to edit message %s: %w", msg.ID, err)
	}

	c.cache.Commit(t, model.Event{Mutation: model.Updated, Node: stored})
	return stored, nil
}

// DeleteMessage hides the message at once and confirms with the server.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	ev := model.Event{Mutation: model.Deleted, Node: model.Message{ID: id}}
	t := c.cache.Optimistic(ev)

	if err := c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil); err != nil {
		c.cache.Rollback(t)
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}

	c.cache.Commit(t, ev)
	return nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) setHeaders(h http.Header) {
	if c.author.UserID != "" {
		h.Set(internal.HeaderUserID, c.author.UserID)
	}
	if c.author.Username != "" {
		h.Set(internal.HeaderUsername, c.author.Username)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		p, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(p)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req.Header)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		//nolint:errcheck
		json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(res.StatusCode)
		}
		return &StatusError{Code: res.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}
