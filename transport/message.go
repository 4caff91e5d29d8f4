// Package transport moves samples and commands between the stat-pulse
// producer and its consumers. Channels are named; events are fire-and-forget,
// and invokes are single request/reply round trips. The Hub routes messages
// inside one process; Server and Client carry the same envelopes over a
// websocket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Channel names. These strings are part of the wire contract.
const (
	// ChannelStatistics carries one Sample per tick, producer to consumers.
	ChannelStatistics = "statistics"

	// ChannelStaticData is the request/reply channel for StaticCapabilities.
	ChannelStaticData = "get-static-data"

	// ChannelChangeView carries view-switch commands to consumers.
	ChannelChangeView = "change-view"

	// ChannelFrameAction carries window-control commands to consumers.
	ChannelFrameAction = "send-frame-action"
)

// Window-control payloads for ChannelFrameAction.
const (
	FrameClose    = "CLOSE"
	FrameMinimize = "MINIMIZE"
	FrameMaximize = "MAXIMIZE"
)

// Kind distinguishes envelope types.
type Kind string

const (
	KindEvent     Kind = "event"
	KindSubscribe Kind = "subscribe"
	KindInvoke    Kind = "invoke"
	KindReply     Kind = "reply"
)

// Message is the wire envelope.
type Message struct {
	Kind    Kind            `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var (
	// ErrClosed is returned when sending through a closed endpoint.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned by Invoke when no responder is registered.
	ErrNoHandler = errors.New("transport: no handler for channel")

	// ErrNotWritable is reported to clients sending events on a
	// producer-only channel.
	ErrNotWritable = errors.New("transport: channel not writable by clients")
)

// Handler answers an invoke. The returned value is JSON-encoded as the reply.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Endpoint is the view of a transport a producer or consumer works against.
// Hub and Client both implement it.
type Endpoint interface {
	// Send publishes payload on channel. Nobody listening is not an error.
	Send(channel string, payload any) error

	// Subscribe returns a subscription receiving every later event on channel.
	Subscribe(channel string) *Subscription

	// Invoke performs one request/reply round trip and decodes the reply into out.
	Invoke(ctx context.Context, channel string, out any) error
}

// Subscription receives raw event payloads for one channel, in send order.
// C is closed when the subscription or its endpoint is closed.
type Subscription struct {
	C <-chan json.RawMessage

	ch      chan json.RawMessage
	channel string
	unsub   func(*Subscription)
	once    sync.Once
}

func newSubscription(channel string, size int, unsub func(*Subscription)) *Subscription {
	ch := make(chan json.RawMessage, size)
	return &Subscription{C: ch, ch: ch, channel: channel, unsub: unsub}
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string {
	return s.channel
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub(s)
		}
	})
}

// Decode unmarshals a payload received on a subscription.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
