package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

// SQLiteStore handles SQLite database operations. SQLite has no native
// vector distance support here, so embeddings are stored as JSON text and
// search always runs the in-process scoring path.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/rebellion_chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/rebellion_chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL,
		receiver_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		embedding TEXT,
		embedding_source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SupportsVectorSearch always reports false for SQLite.
func (s *SQLiteStore) SupportsVectorSearch() bool {
	return false
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES (?, ?, ?)
	`, name, email, passwordHash)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE email = ?
	`, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsers retrieves all users except excludeID.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE id <> ?
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

// CreateMessage creates a new message with NULL embedding columns.
func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, receiver_id, body)
		VALUES (?, ?, ?)
	`, senderID, receiverID, text)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// UpdateVector writes the embedding and its provenance in one statement.
func (s *SQLiteStore) UpdateVector(ctx context.Context, id int64, vector []float32, source string) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE messages SET embedding = ?, embedding_source = ? WHERE id = ?
	`, string(data), source, id)
	return err
}

// FindBetween returns every message exchanged between a and b, oldest first.
func (s *SQLiteStore) FindBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at
	`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

// FindInvolving returns every message where userID is a participant, oldest first.
func (s *SQLiteStore) FindInvolving(ctx context.Context, userID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

// FindConversation returns up to limit messages between a and b, newest first.
func (s *SQLiteStore) FindConversation(ctx context.Context, a, b int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, a, b, b, a, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

// ListUnindexed returns up to limit messages with no stored vector.
func (s *SQLiteStore) ListUnindexed(ctx context.Context, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, embedding, embedding_source
		FROM messages
		WHERE embedding IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

// NearestMessages is unsupported on SQLite.
func (s *SQLiteStore) NearestMessages(ctx context.Context, viewerID, targetUserID int64, queryVec []float32, limit int) ([]VectorHit, error) {
	return nil, ErrVectorSearchUnsupported
}

type sqliteRow interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row sqliteRow) (*models.Message, error) {
	msg := &models.Message{}
	var embedding, source sql.NullString

	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.CreatedAt, &embedding, &source)
	if err != nil {
		return nil, err
	}

	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &msg.Vector); err != nil {
			// A corrupt embedding does not make the message itself
			// unreadable.
			msg.Vector = nil
		}
	}
	if source.Valid {
		msg.VectorSource = source.String
	}
	return msg, nil
}

func collectSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
