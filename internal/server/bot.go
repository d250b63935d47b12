package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16384
)

var (
	ErrBotClosed       = errors.New("bot connection closed")
	ErrBotNotConnected = errors.New("bot not connected")
	ErrSendTimeout     = errors.New("send timeout")
)

// ActionRequest is sent to a bot when it is its turn.
type ActionRequest struct {
	Type         string            `json:"type"`
	RequestID    string            `json:"request_id"`
	GameID       string            `json:"game_id"`
	Token        game.TurnToken    `json:"token"`
	Context      string            `json:"context"`
	ValidActions game.ValidActions `json:"valid_actions"`
}

// DecisionReply is what a bot sends back. Either Action or Text is set.
type DecisionReply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Action    string `json:"action,omitempty"`
	Amount    *int   `json:"amount,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Text      string `json:"text,omitempty"`
}

const (
	typeActionRequest = "action_request"
	typeDecision      = "decision"
)

// BotHub accepts websocket connections from remote bots and serves as a
// decision.Provider for the players they represent.
type BotHub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu   sync.RWMutex
	bots map[string]*Bot
}

var _ decision.Provider = (*BotHub)(nil)

func NewBotHub(logger *log.Logger) *BotHub {
	return &BotHub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("bots"),
		bots:   make(map[string]*Bot),
	}
}

// ServeHTTP upgrades a request for ?player=<id> into a bot connection. A
// new connection for the same player replaces the old one.
func (h *BotHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	bot := newBot(player, conn, h)
	h.mu.Lock()
	old := h.bots[player]
	h.bots[player] = bot
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	h.logger.Info("Bot connected", "player", player)
	go bot.writePump()
	go bot.readPump()
}

// Decide forwards the request to the player's bot and waits for its reply.
func (h *BotHub) Decide(ctx context.Context, req decision.Request) (decision.Response, error) {
	h.mu.RLock()
	bot := h.bots[req.PlayerID]
	h.mu.RUnlock()
	if bot == nil {
		return decision.Response{}, fmt.Errorf("%w: %s", ErrBotNotConnected, req.PlayerID)
	}
	return bot.request(ctx, req)
}

// Connected lists players with a live bot, sorted.
func (h *BotHub) Connected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.bots))
	for id := range h.bots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close disconnects every bot.
func (h *BotHub) Close() {
	h.mu.Lock()
	bots := h.bots
	h.bots = make(map[string]*Bot)
	h.mu.Unlock()
	for _, b := range bots {
		b.Close()
	}
}

func (h *BotHub) unregister(b *Bot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bots[b.ID] == b {
		delete(h.bots, b.ID)
		h.logger.Info("Bot disconnected", "player", b.ID)
	}
}

// Bot is one connected remote decision maker.
type Bot struct {
	ID   string
	conn *websocket.Conn
	hub  *BotHub
	send chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[string]chan decision.Response
}

func newBot(id string, conn *websocket.Conn, hub *BotHub) *Bot {
	return &Bot{
		ID:      id,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, 16),
		done:    make(chan struct{}),
		pending: make(map[string]chan decision.Response),
	}
}

// Close shuts the connection. Pending requests fail with ErrBotClosed.
func (b *Bot) Close() {
	b.once.Do(func() {
		close(b.done)
		_ = b.conn.Close()
	})
}

func (b *Bot) request(ctx context.Context, req decision.Request) (decision.Response, error) {
	reply := make(chan decision.Response, 1)
	b.mu.Lock()
	b.pending[req.RequestID] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.RequestID)
		b.mu.Unlock()
	}()

	data, err := json.Marshal(ActionRequest{
		Type:         typeActionRequest,
		RequestID:    req.RequestID,
		GameID:       req.GameID,
		Token:        req.Token,
		Context:      req.Context,
		ValidActions: req.Valid,
	})
	if err != nil {
		return decision.Response{}, err
	}

	select {
	case b.send <- data:
	case <-b.done:
		return decision.Response{}, ErrBotClosed
	case <-ctx.Done():
		return decision.Response{}, ctx.Err()
	case <-time.After(writeWait):
		return decision.Response{}, ErrSendTimeout
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-b.done:
		return decision.Response{}, ErrBotClosed
	case <-ctx.Done():
		return decision.Response{}, ctx.Err()
	}
}

func (b *Bot) readPump() {
	defer func() {
		b.hub.unregister(b)
		b.Close()
	}()

	b.conn.SetReadLimit(maxMessageSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.hub.logger.Error("Unexpected WebSocket close error", "player", b.ID, "error", err)
			}
			return
		}
		msg, resp, err := decodeReply(data)
		if msg.RequestID == "" && err != nil {
			b.hub.logger.Warn("Ignoring undecodable message", "player", b.ID, "error", err)
			continue
		}
		if err != nil {
			b.hub.logger.Warn("Reply fields mistyped, parsing raw text", "player", b.ID, "request", msg.RequestID, "error", err)
		}
		if msg.Type != typeDecision {
			b.hub.logger.Debug("Ignoring message", "player", b.ID, "type", msg.Type)
			continue
		}

		b.mu.Lock()
		reply, ok := b.pending[msg.RequestID]
		b.mu.Unlock()
		if !ok {
			b.hub.logger.Debug("Dropped reply for unknown request", "player", b.ID, "request", msg.RequestID)
			continue
		}
		select {
		case reply <- resp:
		default:
		}
	}
}

// envelope holds the routing fields of a reply whose body did not decode.
type envelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// decodeReply reads a bot reply. When its fields have the wrong types the
// error is returned alongside the routing fields, and the raw text becomes
// the response so the parser can correct it.
func decodeReply(data []byte) (DecisionReply, decision.Response, error) {
	var msg DecisionReply
	err := json.Unmarshal(data, &msg)
	if err == nil {
		return msg, decision.Response{Action: msg.Action, Amount: msg.Amount, Reasoning: msg.Reasoning, Text: msg.Text}, nil
	}
	var env envelope
	if json.Unmarshal(data, &env) != nil {
		return DecisionReply{}, decision.Response{}, err
	}
	return DecisionReply{Type: env.Type, RequestID: env.RequestID}, decision.Response{Text: string(data)}, err
}

func (b *Bot) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		b.Close()
	}()

	for {
		select {
		case message := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-b.done:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
