package models

import "time"

// Vector provenance values. A stored vector either came out of the text
// encoder or was synthesized by the deterministic fallback; the two are not
// semantically interchangeable, so the source is persisted next to the vector.
const (
	VectorSourceEncoder  = "encoder"
	VectorSourceFallback = "fallback"
)

// Message represents a direct message between two users.
// Vector is nil until the indexer has processed the message; it is written
// atomically together with VectorSource and never partially.
type Message struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"sender_id"`
	ReceiverID   int64     `json:"receiver_id"`
	Text         string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	Vector       []float32 `json:"-"`
	VectorSource string    `json:"-"`
}

// SearchResult is a scored message returned by the search engine.
// Score is a heuristic confidence in [0,1], not a probability.
type SearchResult struct {
	MessageID  int64     `json:"id"`
	Text       string    `json:"message"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
	SenderName string    `json:"sender_name"`
	Score      float64   `json:"similarity_score"`
}
