package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/adityaxdubey/whisper-rebellion/internal/api/middleware"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

const maxSearchLimit = 50

// SearchResponse represents the search endpoint response.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
	Total   int                   `json:"total"`
}

// SearchMessages runs a semantic search over the caller's messages.
// Optional user_id restricts the search to one conversation.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == 0 {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var targetUserID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			h.Error(w, http.StatusBadRequest, "user_id must be a positive integer")
			return
		}
		targetUserID = n
	}

	results := h.engine.Search(r.Context(), viewerID, query, limit, targetUserID)

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}
