// Package search implements the message search engine: a native vector
// distance path when the storage backend supports it, and a hybrid
// lexical-plus-embedding scoring fallback otherwise.
package search

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/embedding"
	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
)

const (
	defaultLimit = 10

	// Minimum score for a hybrid result to be included. Deliberate
	// precision/recall tradeoff, not a probability cutoff.
	scoreThreshold = 0.1
)

// Engine answers similarity queries over a viewer's message history.
type Engine struct {
	store    store.MessageStore
	embedder embedding.Embedder
	logger   zerolog.Logger
}

// NewEngine creates a search engine.
func NewEngine(st store.MessageStore, embedder embedding.Embedder, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    st,
		embedder: embedder,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Search returns up to limit messages visible to viewerID ranked by
// descending score. With targetUserID set (non-zero), candidates are the
// messages exchanged between the two users; otherwise every message
// involving the viewer. Search never fails: any error degrades to an empty
// result list.
func (e *Engine) Search(ctx context.Context, viewerID int64, query string, limit int, targetUserID int64) []models.SearchResult {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return []models.SearchResult{}
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	queryEmb := e.embedder.Embed(ctx, query)
	queryVec := queryEmb.Vector
	if queryEmb.Source != models.VectorSourceEncoder {
		// A fallback query vector carries no semantics; without an
		// encoder the search runs on the lexical signals alone.
		queryVec = nil
	}

	// Fast path: backend-side vector search, only for real encoder
	// query vectors.
	if queryVec != nil && e.store.SupportsVectorSearch() {
		results, err := e.vectorSearch(ctx, viewerID, targetUserID, queryVec, limit)
		if err == nil {
			metrics.SearchQueries.WithLabelValues("vector").Inc()
			metrics.SearchResults.Observe(float64(len(results)))
			return results
		}
		e.logger.Warn().Err(err).Msg("vector search failed, falling back to hybrid scoring")
	}

	results := e.hybridSearch(ctx, viewerID, targetUserID, queryLower, queryVec, limit)
	metrics.SearchQueries.WithLabelValues("hybrid").Inc()
	metrics.SearchResults.Observe(float64(len(results)))
	return results
}

// vectorSearch issues one scoped distance query. Messages without stored
// vectors are excluded by the backend rather than scored as zero.
func (e *Engine) vectorSearch(ctx context.Context, viewerID, targetUserID int64, queryVec []float32, limit int) ([]models.SearchResult, error) {
	hits, err := e.store.NearestMessages(ctx, viewerID, targetUserID, queryVec, limit)
	if err != nil {
		return nil, err
	}

	names := newSenderNames(e.store)
	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		// Cosine distance is in [0,2]; clamp the complement.
		similarity := 1.0 - hit.Distance
		if similarity < 0 {
			similarity = 0
		}
		results = append(results, models.SearchResult{
			MessageID:  hit.Message.ID,
			Text:       hit.Message.Text,
			SenderID:   hit.Message.SenderID,
			ReceiverID: hit.Message.ReceiverID,
			CreatedAt:  hit.Message.CreatedAt,
			SenderName: names.resolve(ctx, hit.Message.SenderID),
			Score:      similarity,
		})
	}
	return results, nil
}

// hybridSearch loads the scoped candidates and scores each in process.
func (e *Engine) hybridSearch(ctx context.Context, viewerID, targetUserID int64, queryLower string, queryVec []float32, limit int) []models.SearchResult {
	var (
		candidates []models.Message
		err        error
	)
	if targetUserID != 0 {
		candidates, err = e.store.FindBetween(ctx, viewerID, targetUserID)
	} else {
		candidates, err = e.store.FindInvolving(ctx, viewerID)
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("viewer", viewerID).Msg("loading search candidates failed")
		return []models.SearchResult{}
	}

	queryTokens := tokenize(queryLower)
	names := newSenderNames(e.store)

	results := make([]models.SearchResult, 0, limit)
	for _, msg := range candidates {
		score := scoreMessage(msg, queryLower, queryTokens, queryVec)
		if score <= scoreThreshold {
			continue
		}
		results = append(results, models.SearchResult{
			MessageID:  msg.ID,
			Text:       msg.Text,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			CreatedAt:  msg.CreatedAt,
			SenderName: names.resolve(ctx, msg.SenderID),
			Score:      score,
		})
	}

	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// senderNames resolves sender display names with a per-search cache. A
// missing sender never fails the search.
type senderNames struct {
	store store.MessageStore
	cache map[int64]string
}

func newSenderNames(st store.MessageStore) *senderNames {
	return &senderNames{store: st, cache: make(map[int64]string)}
}

func (n *senderNames) resolve(ctx context.Context, senderID int64) string {
	if name, ok := n.cache[senderID]; ok {
		return name
	}
	name := "Unknown"
	if user, err := n.store.GetUser(ctx, senderID); err == nil && user != nil {
		name = user.Name
	}
	n.cache[senderID] = name
	return name
}
