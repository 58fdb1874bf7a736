package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/auth"
	"github.com/adityaxdubey/whisper-rebellion/internal/search"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
	"github.com/adityaxdubey/whisper-rebellion/internal/ws"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store   store.MessageStore
	redis   *redis.Client
	tokens  *auth.Tokens
	engine  *search.Engine
	indexer *search.Indexer
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. redis may be
// nil.
func NewHandler(st store.MessageStore, rdb *redis.Client, tokens *auth.Tokens, engine *search.Engine, indexer *search.Indexer, hub *ws.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		store:   st,
		redis:   rdb,
		tokens:  tokens,
		engine:  engine,
		indexer: indexer,
		hub:     hub,
		logger:  logger,
	}
}

// Logger returns the handler's logger, for middleware that share it.
func (h *Handler) Logger() zerolog.Logger {
	return h.logger
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits name to 100 characters, removing control
// characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
