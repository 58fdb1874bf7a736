package embedding

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

func newTestService() *Service {
	return NewService(nil, nil, zerolog.Nop())
}

func TestEmbedDeterministic(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	a := s.Embed(ctx, "skip assembly tomorrow")
	b := s.Embed(ctx, "skip assembly tomorrow")

	if len(a.Vector) != Dimensions {
		t.Fatalf("expected %d dimensions, got %d", Dimensions, len(a.Vector))
	}
	if a.Source != models.VectorSourceFallback {
		t.Errorf("expected fallback source without encoder, got %q", a.Source)
	}
	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatalf("vectors differ at index %d: %v != %v", i, a.Vector[i], b.Vector[i])
		}
	}
}

func TestEmbedNormalizesInput(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	a := s.Embed(ctx, "  Hello World  ")
	b := s.Embed(ctx, "hello world")

	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatal("case and whitespace variants should map to the same vector")
		}
	}
}

func TestEmbedDifferentTexts(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	a := s.Embed(ctx, "math homework is due")
	b := s.Embed(ctx, "skip the meeting")

	same := true
	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should not produce identical vectors")
	}
}

func TestEmbedEmptyText(t *testing.T) {
	s := newTestService()

	for _, text := range []string{"", "   ", "\t\n"} {
		emb := s.Embed(context.Background(), text)
		if len(emb.Vector) != Dimensions {
			t.Fatalf("empty text %q: expected %d dimensions, got %d", text, Dimensions, len(emb.Vector))
		}
		if emb.Source != models.VectorSourceFallback {
			t.Errorf("empty text %q: expected fallback source, got %q", text, emb.Source)
		}
		for i, v := range emb.Vector {
			if v != 0 {
				t.Fatalf("empty text %q: expected zero vector, got %v at index %d", text, v, i)
			}
		}
	}
}

func TestEmbedBatchOrder(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	texts := []string{"first message", "", "third message"}
	embs := s.EmbedBatch(ctx, texts)

	if len(embs) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(embs))
	}
	for i, emb := range embs {
		if len(emb.Vector) != Dimensions {
			t.Fatalf("embedding %d has %d dimensions", i, len(emb.Vector))
		}
	}

	// Each batch element must equal its single-call embedding.
	for i, text := range texts {
		single := s.Embed(ctx, text)
		for j := range single.Vector {
			if embs[i].Vector[j] != single.Vector[j] {
				t.Fatalf("batch element %d differs from single embedding", i)
			}
		}
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	s := newTestService()
	embs := s.EmbedBatch(context.Background(), nil)
	if len(embs) != 0 {
		t.Fatalf("expected empty result, got %d embeddings", len(embs))
	}
}
