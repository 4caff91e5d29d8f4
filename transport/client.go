package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the websocket dial.
const DefaultHandshakeTimeout = 10 * time.Second

// Compile-time check: Client satisfies Endpoint.
var _ Endpoint = (*Client)(nil)

// ClientConfig configures Dial.
type ClientConfig struct {
	// Token is sent as a bearer token when set.
	Token string

	// HandshakeTimeout bounds the dial. Zero means DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Logger for connection events. Nil is safe.
	Logger *slog.Logger
}

// Client is a websocket Endpoint connected to a remote Server. Events for
// channels the client has not subscribed to are dropped.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	local  *Hub

	writeMu sync.Mutex

	mu         sync.Mutex
	pending    map[string]chan Message
	subscribed map[string]bool

	done chan struct{}
	err  error
}

// Dial connects to a stat-pulse websocket endpoint such as ws://host:port/ws.
func Dial(ctx context.Context, url string, cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize * 16)

	c := &Client{
		conn:       conn,
		logger:     logger,
		local:      NewHub(logger),
		pending:    make(map[string]chan Message),
		subscribed: make(map[string]bool),
		done:       make(chan struct{}),
	}
	go c.readLoop()

	logger.Info("connected", "url", url)
	return c, nil
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close ends the connection and closes every subscription.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(m Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("transport: write %s: %w", m.Kind, err)
	}
	return nil
}

// Send publishes an event on channel through the server.
func (c *Client) Send(channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", channel, err)
	}
	return c.write(Message{Kind: KindEvent, Channel: channel, Payload: raw})
}

// Subscribe asks the server for events on channel and returns a local
// subscription receiving them.
func (c *Client) Subscribe(channel string) *Subscription {
	sub := c.local.Subscribe(channel)

	c.mu.Lock()
	first := !c.subscribed[channel]
	c.subscribed[channel] = true
	c.mu.Unlock()

	if first {
		if err := c.write(Message{Kind: KindSubscribe, Channel: channel}); err != nil {
			c.logger.Warn("subscribe failed", "channel", channel, "error", err)
		}
	}
	return sub
}

// Invoke sends a request on channel and waits for the correlated reply.
func (c *Client) Invoke(ctx context.Context, channel string, out any) error {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Message{Kind: KindInvoke, Channel: channel, ID: id}); err != nil {
		return err
	}

	var reply Message
	select {
	case reply = <-ch:
	case <-ctx.Done():
		return fmt.Errorf("transport: invoke %s: %w", channel, ctx.Err())
	case <-c.done:
		return fmt.Errorf("transport: invoke %s: %w", channel, ErrClosed)
	}

	if reply.Error != "" {
		if strings.HasPrefix(reply.Error, ErrNoHandler.Error()) {
			return fmt.Errorf("%w: %s", ErrNoHandler, channel)
		}
		return fmt.Errorf("transport: invoke %s: remote: %s", channel, reply.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Payload, out); err != nil {
		return fmt.Errorf("transport: decode %s reply: %w", channel, err)
	}
	return nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.err = err
		close(c.done)
		c.local.Close()
	}()

	for {
		var m Message
		if err = c.conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.logger.Debug("connection closed", "error", err)
			return
		}

		switch m.Kind {
		case KindEvent:
			c.local.SendRaw(m.Channel, m.Payload)
		case KindReply:
			c.mu.Lock()
			ch := c.pending[m.ID]
			c.mu.Unlock()
			if ch == nil {
				c.logger.Debug("reply without pending invoke", "id", m.ID, "error", m.Error)
				continue
			}
			select {
			case ch <- m:
			default:
			}
		}
	}
}
