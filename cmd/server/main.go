package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adityaxdubey/whisper-rebellion/internal/api"
	"github.com/adityaxdubey/whisper-rebellion/internal/api/middleware"
	"github.com/adityaxdubey/whisper-rebellion/internal/auth"
	"github.com/adityaxdubey/whisper-rebellion/internal/config"
	"github.com/adityaxdubey/whisper-rebellion/internal/embedding"
	"github.com/adityaxdubey/whisper-rebellion/internal/handlers"
	"github.com/adityaxdubey/whisper-rebellion/internal/search"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
	"github.com/adityaxdubey/whisper-rebellion/internal/ws"
)

func main() {
	cfg := config.Load()

	// Logging: pretty console output in development, JSON in production.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Storage backend: Postgres when DATABASE_URL is set, SQLite otherwise.
	var st store.MessageStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		st = pg
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite database")
		}
		st = sq
	}
	defer st.Close()

	// Redis is optional: embedding cache and rate limiting degrade
	// gracefully without it.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing without it")
			rdb = nil
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	encoder := embedding.NewEncoderClient(cfg.EncoderURL, cfg.EncoderModel, cfg.EncoderTimeout)
	cache := embedding.NewCache(rdb)
	embedder := embedding.NewService(encoder, cache, log.Logger)

	engine := search.NewEngine(st, embedder, log.Logger)
	indexer := search.NewIndexer(st, embedder, log.Logger)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	hub := ws.NewHub(st, tokens, indexer, log.Logger)

	h := handlers.NewHandler(st, rdb, tokens, engine, indexer, hub, log.Logger)
	authmw := middleware.NewAuthMiddleware(tokens)
	limiter := middleware.NewRateLimiter(rdb, log.Logger, cfg.RateLimitWhitelist)

	router := api.NewRouter(cfg, h, hub, authmw, limiter)

	// Backfill vectors for messages stored before indexing was available.
	backfillCtx, stopBackfill := context.WithCancel(context.Background())
	defer stopBackfill()
	go indexer.Backfill(backfillCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Bool("vector_search", st.SupportsVectorSearch()).
			Bool("encoder", cfg.EncoderURL != "").
			Bool("redis", rdb != nil).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopBackfill()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
