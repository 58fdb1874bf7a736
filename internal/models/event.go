package models

// Websocket event types exchanged with connected clients.
const (
	EventConnected   = "connected"
	EventNewMessage  = "new_message"
	EventMessageSent = "message_sent"
	EventError       = "error"
	EventSendMessage = "send_message" // inbound
)

// Event is the envelope for every frame the server writes to a client.
// ID is a ULID stamped at emit time.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Connected / error
	Info string `json:"message,omitempty"`

	// new_message / message_sent
	Payload *MessagePayload `json:"data,omitempty"`
}

// MessagePayload is the wire form of a delivered message.
type MessagePayload struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"message"`
	SenderName string `json:"sender_name"`
	CreatedAt  string `json:"created_at"` // RFC 3339
}

// SendMessageRequest is the inbound send_message frame body.
type SendMessageRequest struct {
	Type       string `json:"type"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"message"`
}
