package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

var wordRegex = regexp.MustCompile(`\w+`)

// scoreMessage computes the hybrid score for one candidate: the maximum of
// up to three independent signals. Signals are never summed; any single
// strong signal dominates.
func scoreMessage(msg models.Message, queryLower string, queryTokens map[string]struct{}, queryVec []float32) float64 {
	textLower := strings.ToLower(msg.Text)
	score := 0.0

	// Signal 1: embedding similarity, only when both sides carry a real
	// encoder vector. Hash-fallback vectors are reproducible noise; any
	// two of them sit near cosine 0.75 and would drown the lexical
	// signals.
	if len(queryVec) > 0 && len(msg.Vector) > 0 && msg.VectorSource == models.VectorSourceEncoder {
		if sim := CosineSimilarity(queryVec, msg.Vector); sim > score {
			score = sim
		}
	}

	// Signal 2: exact substring match.
	if strings.Contains(textLower, queryLower) {
		score = math.Max(score, 1.0)
	}

	// Signal 3: lexical overlap.
	if len(queryTokens) > 0 {
		msgTokens := tokenize(textLower)
		if isSubset(queryTokens, msgTokens) {
			score = math.Max(score, 0.9)
		}
		matched := 0
		for q := range queryTokens {
			for w := range msgTokens {
				if strings.Contains(w, q) || strings.Contains(q, w) {
					matched++
					break
				}
			}
		}
		if matched > 0 {
			score = math.Max(score, 0.5*float64(matched)/float64(len(queryTokens)))
		}
	}

	return score
}

// tokenize splits lower-cased text into a set of word tokens.
func tokenize(textLower string) map[string]struct{} {
	words := wordRegex.FindAllString(textLower, -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isSubset(sub, super map[string]struct{}) bool {
	for w := range sub {
		if _, ok := super[w]; !ok {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// either has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// sortByScore orders results by descending score, stable on original scan
// order for equal scores.
func sortByScore(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
