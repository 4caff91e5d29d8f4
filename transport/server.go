package transport

import (
	"context"
	"crypto/subtle"
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

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Clients only send small commands.
	maxMessageSize = 64 * 1024

	// peerQueue is the per-connection outbound queue depth.
	peerQueue = 128
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Token, when set, is required as a bearer token or ?token= query value.
	Token string

	// Logger for connection events. Nil is safe.
	Logger *slog.Logger
}

// Server exposes a Hub over websocket at /ws, plus /health.
type Server struct {
	hub      *Hub
	token    string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// NewServer creates a Server bridging websocket clients to hub.
func NewServer(hub *Hub, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		hub:    hub,
		token:  cfg.Token,
		logger: logger,
		peers:  make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts /ws and /health on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// Handler returns a mux serving only the transport endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Peers returns the number of connected clients.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close disconnects every client. http.Server.Shutdown does not track
// hijacked websocket connections.
func (s *Server) Close() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.conn.Close()
	}
}

func checkAuth(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tokenEqual(auth, token) {
		return true
	}
	// Query parameter for clients that cannot set headers.
	return tokenEqual(r.URL.Query().Get("token"), token)
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// clientWritable lists the channels remote clients may send events on.
// Everything else, statistics included, is producer-only.
var clientWritable = map[string]bool{
	ChannelChangeView:  true,
	ChannelFrameAction: true,
}

// peer is one websocket client. All writes go through out and the single
// writer goroutine.
type peer struct {
	conn *websocket.Conn
	out  chan Message

	mu     sync.Mutex
	closed bool
	subs   map[string]*Subscription
}

func (p *peer) enqueue(m Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.out <- m:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := p.subs
	p.subs = nil
	close(p.out)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !checkAuth(r, s.token) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	p := &peer{
		conn: conn,
		out:  make(chan Message, peerQueue),
		subs: make(map[string]*Subscription),
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	writerDone := make(chan struct{})
	go s.writeLoop(p, writerDone)

	defer func() {
		cancel()
		p.close()
		<-writerDone
		conn.Close()
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		s.logger.Info("client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		s.dispatch(ctx, p, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, p *peer, msg Message) {
	switch msg.Kind {
	case KindSubscribe:
		s.subscribe(p, msg.Channel)

	case KindEvent:
		if !clientWritable[msg.Channel] {
			s.logger.Warn("rejected client event", "channel", msg.Channel)
			p.enqueue(Message{Kind: KindReply, Channel: msg.Channel, ID: msg.ID,
				Error: fmt.Sprintf("%s: %s", ErrNotWritable, msg.Channel)})
			return
		}
		if err := s.hub.SendRaw(msg.Channel, msg.Payload); err != nil {
			s.logger.Debug("event not forwarded", "channel", msg.Channel, "error", err)
		}

	case KindInvoke:
		go func() {
			reply := Message{Kind: KindReply, Channel: msg.Channel, ID: msg.ID}
			raw, err := s.hub.InvokeRaw(ctx, msg.Channel, msg.Payload)
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Payload = raw
			}
			if !p.enqueue(reply) {
				s.hub.drop(msg.Channel)
			}
		}()

	default:
		p.enqueue(Message{Kind: KindReply, ID: msg.ID, Error: "unknown message kind: " + string(msg.Kind)})
	}
}

func (s *Server) subscribe(p *peer, channel string) {
	p.mu.Lock()
	if p.closed || p.subs[channel] != nil {
		p.mu.Unlock()
		return
	}
	sub := s.hub.Subscribe(channel)
	p.subs[channel] = sub
	p.mu.Unlock()

	go func() {
		for raw := range sub.C {
			if !p.enqueue(Message{Kind: KindEvent, Channel: channel, Payload: raw}) {
				s.hub.drop(channel)
			}
		}
	}()
}

func (s *Server) writeLoop(p *peer, done chan<- struct{}) {
	defer close(done)
	failed := false
	for m := range p.out {
		if failed {
			continue
		}
		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteJSON(m); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			failed = true
			p.conn.Close()
		}
	}
}
