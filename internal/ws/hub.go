package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/auth"
	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
	"github.com/adityaxdubey/whisper-rebellion/internal/search"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
)

const inboundTimeout = 10 * time.Second

// Hub owns the presence registry and ties the websocket transport to
// storage, indexing and delivery. One Hub lives for the process lifetime;
// its registry starts empty on every restart.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	store      store.MessageStore
	tokens     *auth.Tokens
	indexer    *search.Indexer
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewHub creates a hub.
func NewHub(st store.MessageStore, tokens *auth.Tokens, indexer *search.Indexer, logger zerolog.Logger) *Hub {
	registry := NewRegistry()
	return &Hub{
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger),
		store:      st,
		tokens:     tokens,
		indexer:    indexer,
		logger:     logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser frontend may be served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Registry exposes the presence registry (health endpoint, tests).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Dispatcher exposes the delivery dispatcher for the message-creation hook.
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// HandleWS authenticates and upgrades a websocket request. The token is
// verified before the handle is registered; a bad token terminates the
// connection attempt and nothing is ever registered for it.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := h.tokens.Verify(token)
	if err != nil {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h, conn, uuid.NewString(), userID)
	h.registry.Add(client.ID, client, userID)
	metrics.Connections.Inc()

	h.logger.Info().
		Int64("user", userID).
		Str("handle", client.ID).
		Msg("connected")

	client.enqueue(models.Event{
		ID:   ulid.Make().String(),
		Type: models.EventConnected,
		Info: "Connected successfully",
	})

	go client.writePump()
	go client.readPump()
}

// disconnect deregisters a client. Safe to call more than once.
func (h *Hub) disconnect(c *Client) {
	if h.registry.Remove(c.ID) {
		metrics.Connections.Dec()
		c.closeSend()
		h.logger.Info().
			Int64("user", c.UserID).
			Str("handle", c.ID).
			Msg("disconnected")
	}
}

// sendError reports a frame-level failure back on the client's own
// connection.
func (h *Hub) sendError(c *Client, info string) {
	c.enqueue(models.Event{
		ID:   ulid.Make().String(),
		Type: models.EventError,
		Info: info,
	})
}

// handleInbound processes one frame from a client. Frames that don't parse
// or carry an unknown type are dropped silently; a well-formed send_message
// with bad fields gets an error event back. A persisted message is indexed
// best-effort and fanned out, with indexing never delaying delivery.
func (h *Hub) handleInbound(c *Client, data []byte) {
	var req models.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if req.Type != models.EventSendMessage {
		return
	}
	if req.ReceiverID == 0 || req.Text == "" {
		h.sendError(c, "receiver_id and message are required")
		return
	}

	senderID, ok := h.registry.UserFor(c.ID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	msg, err := h.store.CreateMessage(ctx, senderID, req.ReceiverID, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Int64("sender", senderID).Msg("saving message failed")
		h.sendError(c, "failed to save message")
		return
	}
	metrics.MessagesCreated.Inc()

	// Searchability is lower priority than delivery; indexing runs on its
	// own with its own error boundary.
	h.indexer.IndexAsync(msg.ID, msg.Text)

	senderName := "Unknown"
	if sender, err := h.store.GetUser(ctx, senderID); err == nil && sender != nil {
		senderName = sender.Name
	}

	h.dispatcher.Dispatch(msg, senderName, c.ID)
}
