package chat

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"

	"github.com/johndosdos/chatsync/internal/model"
	"github.com/johndosdos/chatsync/internal/reconcile"
)

type sanitizer interface {
	Sanitize(s string) string
}

// Publisher sends confirmed events to every hub, this one included.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) (uint64, error)
}

type result struct {
	event model.Event
	err   error
}

type request struct {
	ctx   context.Context
	req   model.MutationRequest
	reply chan result
}

// Hub contains functions needed for the app state management.
//
// All state is owned by the Run goroutine. Confirmed events arrive on
// BrokerMsg, are folded into the recent-messages snapshot and then fanned
// out to subscribers.
type Hub struct {
	store      Store
	publisher  Publisher
	sanitizer  sanitizer
	recent     *reconcile.Cache
	limit      int
	logger     *slog.Logger
	clients    map[*Subscriber]struct{}
	count      atomic.Int64
	Register   chan Registration
	Unregister chan *Subscriber
	BrokerMsg  chan model.Event
	requests   chan request
	done       chan struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithPublisher routes confirmed events through p. Without a publisher the
// hub delivers its own events directly, which is enough for a single
// instance.
func WithPublisher(p Publisher) HubOption {
	return func(h *Hub) {
		h.publisher = p
	}
}

// WithHistoryLimit sets how many recent messages the hub keeps.
func WithHistoryLimit(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.limit = n
		}
	}
}

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub returns a new instance of Hub.
func NewHub(store Store, opts ...HubOption) *Hub {
	h := &Hub{
		store:      store,
		sanitizer:  bluemonday.StrictPolicy(),
		limit:      50,
		logger:     slog.Default(),
		clients:    make(map[*Subscriber]struct{}),
		Register:   make(chan Registration),
		Unregister: make(chan *Subscriber),
		BrokerMsg:  make(chan model.Event, 1024),
		requests:   make(chan request),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.recent = reconcile.NewCache(reconcile.WithLogger(h.logger))
	return h
}

// Seed loads the recent history from the store. Call it before Run.
func (h *Hub) Seed(ctx context.Context) error {
	list, err := LoadHistory(ctx, h.store, h.limit)
	if err != nil {
		return err
	}
	h.recent.Reset(list)
	return nil
}

// Messages returns the recent messages, newest first.
func (h *Hub) Messages() []model.Message {
	snap := h.recent.Snapshot()
	if len(snap) > h.limit {
		snap = snap[:h.limit]
	}
	return snap
}

// Submit hands req to the hub and waits for the authoritative event.
func (h *Hub) Submit(ctx context.Context, req model.MutationRequest) (model.Event, error) {
	r := request{ctx: ctx, req: req, reply: make(chan result, 1)}

	select {
	case h.requests <- r:
	case <-h.done:
		return model.Event{}, ErrStopped
	case <-ctx.Done():
		return model.Event{}, ctx.Err()
	}

	select {
	case res := <-r.reply:
		return res.event, res.err
	case <-ctx.Done():
		return model.Event{}, ctx.Err()
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run manages incoming and outgoing hub traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			delete(h.clients, c)
			close(c.Events)
		}
		h.count.Store(0)
		close(h.done)
	}()

	for {
		select {
		case reg := <-h.Register:
			h.clients[reg.Subscriber] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			close(reg.Done)

		case c := <-h.Unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.count.Store(int64(len(h.clients)))
				close(c.Events)
			}

		case r := <-h.requests:
			ev, err := h.handle(r.ctx, r.req)
			r.reply <- result{event: ev, err: err}

		case ev := <-h.BrokerMsg:
			h.broadcast(ev)

		case <-ctx.Done():
			h.logger.Info("hub stopped", "reason", ctx.Err())
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, req model.MutationRequest) (model.Event, error) {
	ev, err := execute(ctx, h.store, h.sanitizer, req)
	if err != nil {
		h.logger.WarnContext(ctx, "mutation rejected",
			"mutation", req.Mutation,
			"id", req.ID,
			"user_id", req.UserID,
			"error", err)
		return model.Event{}, err
	}

	if h.publisher == nil {
		h.broadcast(ev)
		return ev, nil
	}

	if _, err := h.publisher.Publish(ctx, ev); err != nil {
		// The change is stored, so the caller still gets the authoritative
		// event. Other subscribers catch up on their next reload.
		h.logger.ErrorContext(ctx, "failed to publish event",
			"mutation", ev.Mutation,
			"id", ev.Node.ID,
			"error", err)
	}
	return ev, nil
}

func (h *Hub) broadcast(ev model.Event) {
	h.recent.Apply(ev)
	if snap := h.recent.Snapshot(); len(snap) > 2*h.limit {
		h.recent.Reset(snap[:h.limit])
	}

	for c := range h.clients {
		select {
		case c.Events <- ev:
		default:
			h.logger.Warn("skipping event - channel full or client slow",
				"user_id", c.UserID,
				"mutation", ev.Mutation,
				"id", ev.Node.ID)
		}
	}
}
