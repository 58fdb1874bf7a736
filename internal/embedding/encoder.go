package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
)

// EncoderClient calls an OpenAI-compatible /embeddings endpoint. The request
// timeout bounds a stalled encoder so a hung model process degrades to the
// fallback instead of stalling indexing or search.
type EncoderClient struct {
	url    string
	model  string
	client *http.Client
}

// NewEncoderClient creates an encoder client. Returns nil when url is empty
// so callers can wire the absence of an encoder directly.
func NewEncoderClient(url, model string, timeout time.Duration) *EncoderClient {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EncoderClient{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type encodeRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type encodeResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Encode embeds the given texts, returning one vector per input in input
// order.
func (c *EncoderClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() {
		metrics.EncoderLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(encodeRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder returned status %d", resp.StatusCode)
	}

	var decoded encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d embeddings for %d inputs", len(decoded.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(vecs) {
			return nil, fmt.Errorf("encoder returned out-of-range index %d", item.Index)
		}
		if len(item.Embedding) != Dimensions {
			return nil, fmt.Errorf("encoder returned %d-dimensional embedding, want %d", len(item.Embedding), Dimensions)
		}
		vecs[item.Index] = item.Embedding
	}
	for i, vec := range vecs {
		if vec == nil {
			return nil, fmt.Errorf("encoder response missing embedding for input %d", i)
		}
	}
	return vecs, nil
}
