package reconcile

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/johndosdos/chatsync/internal/model"
)

// Ticket identifies a pending optimistic event in a Cache.
type Ticket uint64

type pendingEvent struct {
	ticket Ticket
	event  model.Event
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used to report ignored events.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithOnChange registers fn to receive every new view. fn is called with the
// cache's write lock held and must not call back into the cache.
func WithOnChange(fn func([]model.Message)) CacheOption {
	return func(c *Cache) {
		c.onChange = fn
	}
}

// Cache holds the confirmed message list plus a layer of optimistic events
// that have been shown to the user but not yet confirmed by the server.
//
// The visible view is the confirmed base with every pending event folded on
// top in issue order. Readers get the view through Snapshot without locking;
// writers are serialized.
type Cache struct {
	mu       sync.Mutex
	base     []model.Message
	pending  []pendingEvent
	next     Ticket
	view     atomic.Pointer[[]model.Message]
	logger   *slog.Logger
	onChange func([]model.Message)
}

// NewCache returns an empty Cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	empty := []model.Message{}
	c.view.Store(&empty)
	return c
}

// Snapshot returns the current view. Callers must treat it as read-only.
func (c *Cache) Snapshot() []model.Message {
	return *c.view.Load()
}

// Pending returns the number of unconfirmed optimistic events.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Reset replaces the confirmed list wholesale, e.g. with a fresh query
// result. Pending optimistic events stay and are replayed on top.
func (c *Cache) Reset(list []model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The first occurrence of an id is the newest one.
	base := make([]model.Message, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, m := range list {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		base = append(base, m)
	}
	c.base = base
	c.publish()
}

// Apply applies a confirmed event to the base list and reports whether it
// changed anything.
func (c *Cache) Apply(ev model.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, changed := ApplyEvent(c.base, ev)
	if !changed {
		c.ignored("confirmed", ev)
		return false
	}
	c.base = out
	c.publish()
	return true
}

// Optimistic shows ev immediately and returns a ticket to Commit or Rollback
// it once the server answers.
func (c *Cache) Optimistic(ev model.Event) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	t := c.next
	c.pending = append(c.pending, pendingEvent{ticket: t, event: ev})
	c.publish()
	return t
}

// Commit drops the optimistic event behind t and applies the server's
// authoritative event to the base list.
func (c *Cache) Commit(t Ticket, ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drop(t)
	if out, changed := ApplyEvent(c.base, ev); changed {
		c.base = out
	} else {
		c.ignored("commit", ev)
	}
	c.publish()
}

// Rollback discards the optimistic event behind t.
func (c *Cache) Rollback(t Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drop(t) {
		c.publish()
	}
}

func (c *Cache) drop(t Ticket) bool {
	for i, p := range c.pending {
		if p.ticket == t {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// publish recomputes the view. Must be called with mu held.
func (c *Cache) publish() {
	view := c.base
	for _, p := range c.pending {
		view = Apply(view, p.event)
	}
	if view == nil {
		view = []model.Message{}
	}

	c.view.Store(&view)
	if c.onChange != nil {
		c.onChange(view)
	}
}

func (c *Cache) ignored(source string, ev model.Event) {
	c.logger.Debug("event left message list unchanged",
		"source", source,
		"mutation", ev.Mutation,
		"id", ev.Node.ID)
}
