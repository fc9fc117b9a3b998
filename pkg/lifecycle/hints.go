package lifecycle

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageType is the type of a realtime message
type MessageType string

const (
	MessageTypeNewPost   MessageType = "new_post"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// Message is a realtime frame from the server
type Message struct {
	Type    MessageType         `json:"type"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

// NewPostHint is the payload of a new_post message. An empty channel
// applies to every loop.
type NewPostHint struct {
	Channel   feed.Channel `json:"channel,omitempty"`
	Signature string       `json:"signature,omitempty"`
}

// HintConfig configures a HintSource
type HintConfig struct {
	URL               string
	Token             string
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
}

// DefaultHintConfig returns the reconnect and heartbeat timings used when
// only a URL is configured
func DefaultHintConfig(url string) HintConfig {
	return HintConfig{
		URL:               url,
		ConnectTimeout:    15 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ReconnectBase:     2 * time.Second,
		ReconnectMax:      30 * time.Second,
	}
}

// Trigger is what a hint pokes; *poller.Loop satisfies it
type Trigger interface {
	Channel() feed.Channel
	PollNow() bool
}

// HintSource listens on a websocket for new_post hints and turns them into
// immediate polls. Hints never carry posts; the poll loop still fetches.
type HintSource struct {
	cfg HintConfig

	mu      sync.RWMutex
	targets []Trigger
	token   string

	hints    atomic.Int64
	sessions atomic.Int64
}

// NewHintSource creates a source for cfg; Run connects
func NewHintSource(cfg HintConfig) *HintSource {
	def := DefaultHintConfig(cfg.URL)
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = def.ReconnectBase
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = def.ReconnectMax
	}
	return &HintSource{cfg: cfg, token: cfg.Token}
}

// Bind routes hints to t
func (h *HintSource) Bind(t Trigger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targets = append(h.targets, t)
}

// SetAuthToken replaces the token used on the next connection
func (h *HintSource) SetAuthToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Hints returns how many new_post hints have been received
func (h *HintSource) Hints() int64 {
	return h.hints.Load()
}

// Sessions returns how many connections have been established
func (h *HintSource) Sessions() int64 {
	return h.sessions.Load()
}

// Run keeps a connection open until ctx is done, reconnecting with
// exponential backoff. It returns nil on cancellation.
func (h *HintSource) Run(ctx context.Context) error {
	delay := h.cfg.ReconnectBase
	for {
		connected, err := h.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = h.cfg.ReconnectBase
		}

		jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
		wait := delay + jitter
		logger.Debug("Realtime connection lost, reconnecting", "error", err, "wait", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		delay *= 2
		if delay > h.cfg.ReconnectMax {
			delay = h.cfg.ReconnectMax
		}
	}
}

// session runs one connection. connected reports whether the dial worked.
func (h *HintSource) session(ctx context.Context) (connected bool, err error) {
	h.mu.RLock()
	token := h.token
	h.mu.RUnlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.ConnectTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, h.cfg.URL, header)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", h.cfg.URL, err)
	}
	h.sessions.Add(1)
	logger.Debug("Realtime connected", "url", h.cfg.URL)

	sessCtx, stop := context.WithCancel(ctx)
	defer stop()

	var writeMu sync.Mutex
	go func() {
		<-sessCtx.Done()
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		writeMu.Unlock()
		_ = conn.Close()
	}()
	go h.heartbeat(sessCtx, conn, &writeMu)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		h.handle(data)
	}
}

func (h *HintSource) heartbeat(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	frame, _ := json.Marshal(Message{Type: MessageTypeHeartbeat})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, frame)
			writeMu.Unlock()
			if err != nil {
				logger.Debug("Failed to send heartbeat", "error", err)
				return
			}
		}
	}
}

func (h *HintSource) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Debug("Ignoring malformed realtime frame", "error", err)
		return
	}

	switch msg.Type {
	case MessageTypeNewPost:
		var hint NewPostHint
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &hint)
		}
		h.dispatch(hint)
		h.hints.Add(1)
	case MessageTypeError:
		logger.Warn("Realtime server error", "payload", string(msg.Payload))
	}
}

func (h *HintSource) dispatch(hint NewPostHint) {
	h.mu.RLock()
	targets := append([]Trigger(nil), h.targets...)
	h.mu.RUnlock()

	for _, t := range targets {
		if hint.Channel != "" && hint.Channel != t.Channel() {
			continue
		}
		if t.PollNow() {
			logger.Debug("Poll triggered by realtime hint", "channel", t.Channel(), "signature", hint.Signature)
		}
	}
}
