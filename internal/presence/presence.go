// Package presence serves the long-lived connect stream: one handshake
// message, then a heartbeat per interval until a fixed message cap or the
// client goes away.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultInterval  = time.Second
	DefaultMaxChunks = 300

	ContentTypeNDJSON = "application/x-ndjson"

	wsWriteTimeout = 5 * time.Second
)

// Message types.
const (
	TypeHandshake = "handshake"
	TypeHeartbeat = "heartbeat"
)

// Config controls the stream cadence.
type Config struct {
	Interval time.Duration
	// MaxChunks caps the total messages per connection, handshake included.
	MaxChunks int
	// WebSocket allows clients to upgrade instead of reading a chunked body.
	WebSocket bool
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = DefaultMaxChunks
	}
}

// Message is one streamed chunk.
type Message struct {
	Type         string    `json:"type"`
	ConnectionID string    `json:"connection_id"`
	Seq          int       `json:"seq"`
	Time         time.Time `json:"time"`
	IntervalMs   int64     `json:"interval_ms,omitempty"`
	MaxMessages  int       `json:"max_messages,omitempty"`
}

// Handler serves GET /presence/connect. Connections share nothing except the
// active counter.
type Handler struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int64 {
	return h.active.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cfg.WebSocket && websocket.IsWebSocketUpgrade(r) {
		h.serveWebSocket(w, r)
		return
	}
	h.serveChunked(w, r)
}

func (h *Handler) serveChunked(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	h.run(r.Context(), "chunked", func(m Message) error {
		if err := enc.Encode(m); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("presence upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The read side only exists to notice the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.run(ctx, "websocket", func(m Message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(m)
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "heartbeat limit reached"),
		time.Now().Add(wsWriteTimeout))
}

// run sends the handshake, then heartbeats on a per-connection ticker until
// MaxChunks messages went out, send fails, or ctx ends.
func (h *Handler) run(ctx context.Context, transport string, send func(Message) error) {
	h.active.Add(1)
	defer h.active.Add(-1)

	connID := uuid.NewString()
	sent, err := h.stream(ctx, connID, send)
	reason := "limit"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "client closed"
	case err != nil:
		reason = "write failed"
	}
	h.log.Debug("presence stream closed", "connection_id", connID, "transport", transport, "messages", sent, "reason", reason)
}

func (h *Handler) stream(ctx context.Context, connID string, send func(Message) error) (int, error) {
	sent := 0
	hello := Message{
		Type:         TypeHandshake,
		ConnectionID: connID,
		Seq:          sent,
		Time:         time.Now().UTC(),
		IntervalMs:   h.cfg.Interval.Milliseconds(),
		MaxMessages:  h.cfg.MaxChunks,
	}
	if err := send(hello); err != nil {
		return sent, err
	}
	sent++

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for sent < h.cfg.MaxChunks {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case now := <-ticker.C:
			if err := send(Message{Type: TypeHeartbeat, ConnectionID: connID, Seq: sent, Time: now.UTC()}); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}
