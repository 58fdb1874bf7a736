package store

import (
	"context"
	"errors"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

// ErrVectorSearchUnsupported is returned by NearestMessages on backends
// without native vector distance queries. Callers fall back to in-process
// scoring.
var ErrVectorSearchUnsupported = errors.New("store: vector search not supported by this backend")

// VectorHit is one row of a native vector distance query.
type VectorHit struct {
	Message  models.Message
	Distance float64
}

// MessageStore defines the interface for persistent storage of users and
// messages. Both PostgresStore and SQLiteStore implement this interface.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, excludeID int64) ([]models.User, error)

	// Message operations
	CreateMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	// UpdateVector writes the embedding and its provenance in a single
	// statement. Updating a message that no longer exists is a no-op.
	UpdateVector(ctx context.Context, id int64, vector []float32, source string) error
	// FindBetween returns every message exchanged between a and b, in
	// either direction, oldest first.
	FindBetween(ctx context.Context, a, b int64) ([]models.Message, error)
	// FindInvolving returns every message where userID is sender or
	// receiver, oldest first.
	FindInvolving(ctx context.Context, userID int64) ([]models.Message, error)
	// FindConversation returns up to limit messages between a and b,
	// newest first (history endpoint).
	FindConversation(ctx context.Context, a, b int64, limit int) ([]models.Message, error)
	// ListUnindexed returns up to limit messages with no stored vector.
	ListUnindexed(ctx context.Context, limit int) ([]models.Message, error)

	// SupportsVectorSearch reports whether NearestMessages can answer
	// native distance queries. Resolved once when the store is opened.
	SupportsVectorSearch() bool
	// NearestMessages runs a scoped distance query against stored vectors,
	// nearest first. Messages without a vector are excluded, not scored as
	// zero. targetUserID == 0 means "all messages involving viewerID".
	NearestMessages(ctx context.Context, viewerID, targetUserID int64, queryVec []float32, limit int) ([]VectorHit, error)
}
