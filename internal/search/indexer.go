package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/adityaxdubey/whisper-rebellion/internal/embedding"
	"github.com/adityaxdubey/whisper-rebellion/internal/metrics"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
)

const (
	indexTimeout    = 30 * time.Second
	backfillBatch   = 64
	backfillWorkers = 4
)

// Indexer computes and persists message vectors. Indexing is strictly
// best-effort: no failure here ever rolls back or fails the message-creation
// flow that triggered it.
type Indexer struct {
	store    store.MessageStore
	embedder embedding.Embedder
	logger   zerolog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(st store.MessageStore, embedder embedding.Embedder, logger zerolog.Logger) *Indexer {
	return &Indexer{
		store:    st,
		embedder: embedder,
		logger:   logger.With().Str("component", "indexer").Logger(),
	}
}

// IndexMessage embeds text and persists the vector on the message. A message
// that no longer exists is a no-op; every failure is logged and absorbed.
func (ix *Indexer) IndexMessage(ctx context.Context, messageID int64, text string) {
	emb := ix.embedder.Embed(ctx, text)

	msg, err := ix.store.GetMessage(ctx, messageID)
	if err != nil {
		metrics.IndexFailures.Inc()
		ix.logger.Warn().Err(err).Int64("message_id", messageID).Msg("index lookup failed")
		return
	}
	if msg == nil {
		// Deleted between creation and indexing.
		return
	}

	if err := ix.store.UpdateVector(ctx, messageID, emb.Vector, emb.Source); err != nil {
		metrics.IndexFailures.Inc()
		ix.logger.Warn().Err(err).Int64("message_id", messageID).Msg("storing vector failed")
	}
}

// IndexAsync runs IndexMessage in its own goroutine with its own deadline,
// decoupled from the request that created the message.
func (ix *Indexer) IndexAsync(messageID int64, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		ix.IndexMessage(ctx, messageID, text)
	}()
}

// Backfill embeds every stored message that has no vector yet, in batches.
// Purely best-effort: it stops on context cancellation or when a full batch
// makes no progress.
func (ix *Indexer) Backfill(ctx context.Context) {
	total := 0
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := ix.store.ListUnindexed(ctx, backfillBatch)
		if err != nil {
			ix.logger.Warn().Err(err).Msg("backfill scan failed")
			return
		}
		if len(batch) == 0 {
			break
		}

		texts := make([]string, len(batch))
		for i, msg := range batch {
			texts[i] = msg.Text
		}
		embs := ix.embedder.EmbedBatch(ctx, texts)

		var stored atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(backfillWorkers)
		for i := range batch {
			i := i
			g.Go(func() error {
				err := ix.store.UpdateVector(gctx, batch[i].ID, embs[i].Vector, embs[i].Source)
				if err != nil {
					metrics.IndexFailures.Inc()
					ix.logger.Warn().Err(err).Int64("message_id", batch[i].ID).Msg("backfill write failed")
					return nil
				}
				stored.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		if stored.Load() == 0 {
			// Nothing in this batch could be written; retrying the
			// same rows would loop forever.
			ix.logger.Warn().Int("batch", len(batch)).Msg("backfill made no progress, stopping")
			return
		}
		total += int(stored.Load())
	}

	if total > 0 {
		ix.logger.Info().Int("indexed", total).Msg("vector backfill completed")
	}
}
