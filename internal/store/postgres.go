package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

const embeddingDim = 384

// PostgresStore handles PostgreSQL database operations. When the pgvector
// extension is installed, vectors live in a vector(384) column and
// NearestMessages answers native distance queries; otherwise vectors are
// stored as JSONB and search falls back to in-process scoring.
type PostgresStore struct {
	pool         *pgxpool.Pool
	vectorSearch bool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
// The vector capability is resolved once here and never re-probed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	// Probe with a throwaway connection: try to enable pgvector and run
	// migrations before the pool starts handing out connections.
	probe, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	vectorSearch := false
	if _, err := probe.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err == nil {
		vectorSearch = true
	}
	if err := initSchema(ctx, probe, vectorSearch); err != nil {
		probe.Close(ctx)
		return nil, err
	}
	probe.Close(ctx)

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	if vectorSearch {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvector.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, vectorSearch: vectorSearch}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn, vectorSearch bool) error {
	embeddingType := "JSONB"
	if vectorSearch {
		embeddingType = fmt.Sprintf("vector(%d)", embeddingDim)
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		sender_id BIGINT NOT NULL,
		receiver_id BIGINT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		embedding %s,
		embedding_source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	`, embeddingType)

	_, err := conn.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SupportsVectorSearch reports whether the pgvector fast path is available.
func (s *PostgresStore) SupportsVectorSearch() bool {
	return s.vectorSearch
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, created_at
	`, name, email, passwordHash).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsers retrieves all users except excludeID.
func (s *PostgresStore) ListUsers(ctx context.Context, excludeID int64) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE id <> $1
		ORDER BY id
	`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateMessage creates a new message. The embedding columns start NULL and
// are only ever written by UpdateVector.
func (s *PostgresStore) CreateMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, receiver_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, body, created_at
	`, senderID, receiverID, text).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Text,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages WHERE id = $1
	`, id)
	msg, err := s.scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// UpdateVector writes the embedding and its provenance in one statement.
func (s *PostgresStore) UpdateVector(ctx context.Context, id int64, vector []float32, source string) error {
	var value any
	if s.vectorSearch {
		value = pgvector.NewVector(vector)
	} else {
		data, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		value = data
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET embedding = $1, embedding_source = $2 WHERE id = $3
	`, value, source, id)
	return err
}

// FindBetween returns every message exchanged between a and b, oldest first.
func (s *PostgresStore) FindBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectMessages(rows)
}

// FindInvolving returns every message where userID is a participant, oldest first.
func (s *PostgresStore) FindInvolving(ctx context.Context, userID int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectMessages(rows)
}

// FindConversation returns up to limit messages between a and b, newest first.
func (s *PostgresStore) FindConversation(ctx context.Context, a, b int64, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC
		LIMIT $3
	`, a, b, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectMessages(rows)
}

// ListUnindexed returns up to limit messages with no stored vector.
func (s *PostgresStore) ListUnindexed(ctx context.Context, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE embedding IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectMessages(rows)
}

// NearestMessages runs one scoped cosine distance query, nearest first.
func (s *PostgresStore) NearestMessages(ctx context.Context, viewerID, targetUserID int64, queryVec []float32, limit int) ([]VectorHit, error) {
	if !s.vectorSearch {
		return nil, ErrVectorSearchUnsupported
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding <=> $1 AS distance
		FROM messages
		WHERE embedding IS NOT NULL
		  AND embedding_source = 'encoder'
		  AND (
			($3 <> 0 AND ((sender_id = $2 AND receiver_id = $3) OR (sender_id = $3 AND receiver_id = $2)))
			OR
			($3 = 0 AND (sender_id = $2 OR receiver_id = $2))
		  )
		ORDER BY distance
		LIMIT $4
	`, pgvector.NewVector(queryVec), viewerID, targetUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var hit VectorHit
		err := rows.Scan(
			&hit.Message.ID,
			&hit.Message.SenderID,
			&hit.Message.ReceiverID,
			&hit.Message.Text,
			&hit.Message.CreatedAt,
			&hit.Distance,
		)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

type pgxRow interface {
	Scan(dest ...any) error
}

// scanMessage reads one message row including the embedding columns, which
// are typed differently depending on the vector capability.
func (s *PostgresStore) scanMessage(row pgxRow) (*models.Message, error) {
	msg := &models.Message{}
	var source *string

	if s.vectorSearch {
		var vec *pgvector.Vector
		err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.CreatedAt, &vec, &source)
		if err != nil {
			return nil, err
		}
		if vec != nil {
			msg.Vector = vec.Slice()
		}
	} else {
		var raw []byte
		err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.CreatedAt, &raw, &source)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &msg.Vector); err != nil {
				// A corrupt embedding does not make the message
				// itself unreadable.
				msg.Vector = nil
			}
		}
	}

	if source != nil {
		msg.VectorSource = *source
	}
	return msg, nil
}

func (s *PostgresStore) collectMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
