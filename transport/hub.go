package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

// DefaultSubscriberBuffer is the per-subscription queue depth.
const DefaultSubscriberBuffer = 64

// Compile-time check: Hub satisfies Endpoint.
var _ Endpoint = (*Hub)(nil)

// Hub routes messages between goroutines of one process. Delivery never
// blocks the sender: a subscriber whose queue is full misses that message.
type Hub struct {
	logger  *slog.Logger
	bufSize int

	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	handlers map[string]Handler
	onDrop   func(channel string)
	closed   bool
}

// NewHub creates a Hub. If logger is nil, a discard logger is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		logger:   logger,
		bufSize:  DefaultSubscriberBuffer,
		subs:     make(map[string]map[*Subscription]struct{}),
		handlers: make(map[string]Handler),
	}
}

// SetDropHook registers fn to be called for every message dropped on a full
// subscriber queue.
func (h *Hub) SetDropHook(fn func(channel string)) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

// Send encodes payload and delivers it to every subscriber of channel.
func (h *Hub) Send(channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", channel, err)
	}
	return h.SendRaw(channel, raw)
}

// SendRaw delivers an already-encoded payload.
func (h *Hub) SendRaw(channel string, raw json.RawMessage) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[channel] {
		select {
		case sub.ch <- raw:
		default:
			h.dropLocked(channel)
		}
	}
	return nil
}

// Publish sends a sample on the statistics channel. It lets the Hub serve as
// the sampler's publisher.
func (h *Hub) Publish(s collectors.Sample) {
	if err := h.Send(ChannelStatistics, s); err != nil {
		h.logger.Debug("sample not published", "error", err)
	}
}

// drop records a message lost after it left the hub, e.g. on a slow socket.
func (h *Hub) drop(channel string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.dropLocked(channel)
}

func (h *Hub) dropLocked(channel string) {
	h.logger.Debug("subscriber queue full, message dropped", "channel", channel)
	if h.onDrop != nil {
		h.onDrop(channel)
	}
}

// Subscribe registers a new subscription on channel. Subscribing to a closed
// hub returns a subscription whose channel is already closed.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := newSubscription(channel, h.bufSize, h.unsubscribe)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	set := h.subs[channel]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[sub.channel]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.channel)
	}
	close(sub.ch)
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Handle registers the responder for invokes on channel, replacing any
// previous one.
func (h *Hub) Handle(channel string, fn Handler) {
	h.mu.Lock()
	h.handlers[channel] = fn
	h.mu.Unlock()
}

// InvokeRaw calls the responder for channel and returns its encoded reply.
func (h *Hub) InvokeRaw(ctx context.Context, channel string, payload json.RawMessage) (json.RawMessage, error) {
	h.mu.RLock()
	fn, ok := h.handlers[channel]
	closed := h.closed
	h.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, channel)
	}

	res, err := fn(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", channel, err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("transport: encode %s reply: %w", channel, err)
	}
	return raw, nil
}

// Invoke calls the responder for channel and decodes its reply into out.
func (h *Hub) Invoke(ctx context.Context, channel string, out any) error {
	raw, err := h.InvokeRaw(ctx, channel, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("transport: decode %s reply: %w", channel, err)
	}
	return nil
}

// Close closes every subscription. Later sends return ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for channel, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, channel)
	}
}
