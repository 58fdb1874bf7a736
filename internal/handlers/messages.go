package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adityaxdubey/whisper-rebellion/internal/api/middleware"
	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

const (
	maxMessageLength    = 4096
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SendMessageRequest represents the REST message send body.
type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"message"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"message"`
	SenderName string `json:"sender_name"`
	CreatedAt  string `json:"created_at"`
}

func (h *Handler) messageResponse(r *http.Request, msg *models.Message, names map[int64]string) MessageResponse {
	name, ok := names[msg.SenderID]
	if !ok {
		name = "Unknown"
		if u, err := h.store.GetUser(r.Context(), msg.SenderID); err == nil && u != nil {
			name = u.Name
		}
		names[msg.SenderID] = name
	}
	return MessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		SenderName: name,
		CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SendMessage persists a direct message and schedules it for indexing.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.GetUserID(r.Context())
	if senderID == 0 {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(text) > maxMessageLength {
		h.Error(w, http.StatusBadRequest, "message too long")
		return
	}
	if req.ReceiverID <= 0 {
		h.Error(w, http.StatusBadRequest, "receiver_id is required")
		return
	}

	receiver, err := h.store.GetUser(r.Context(), req.ReceiverID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if receiver == nil {
		h.Error(w, http.StatusNotFound, "Receiver not found")
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), senderID, req.ReceiverID, text)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesCreated.Inc()

	// Indexing is best effort and never blocks or fails the send.
	h.indexer.IndexAsync(msg.ID, msg.Text)

	names := map[int64]string{}
	if sender, err := h.store.GetUser(r.Context(), senderID); err == nil && sender != nil {
		names[senderID] = sender.Name
	}
	h.JSON(w, http.StatusCreated, h.messageResponse(r, msg, names))
}

// GetMessages returns the conversation between the caller and another user,
// newest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == 0 {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	otherID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || otherID <= 0 {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := h.store.FindConversation(r.Context(), viewerID, otherID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	names := map[int64]string{}
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, h.messageResponse(r, &msgs[i], names))
	}
	h.JSON(w, http.StatusOK, out)
}
