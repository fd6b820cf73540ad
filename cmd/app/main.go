package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cyber-research-service/internal/config"
	"cyber-research-service/internal/domain/ports/repository"
	expertAdapters "cyber-research-service/internal/infra/adapters/expert"
	pg "cyber-research-service/internal/infra/db/postgres"
	"cyber-research-service/internal/infra/fanout"
	"cyber-research-service/internal/infra/logging"
	"cyber-research-service/internal/infra/memstore"
	"cyber-research-service/internal/infra/metrics"
	red "cyber-research-service/internal/infra/redis"
	"cyber-research-service/internal/infra/render"
	"cyber-research-service/internal/infra/web"
	"cyber-research-service/internal/infra/worker"
	"cyber-research-service/internal/pipeline"
	"cyber-research-service/internal/title"
	"cyber-research-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Store ----
	var (
		sessions   repository.SessionRepository
		activities repository.ActivityRepository
		tm         repository.TransactionManager
	)
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema setup failed")
		}
		pgTM := pg.NewTxManager(pool)
		sessions = pg.NewSessionRepo(pool, pgTM)
		activities = pg.NewActivityRepo(pool)
		tm = pgTM
	default:
		sessions = memstore.NewSessionRepo()
		activities = memstore.NewActivityRepo()
		tm = memstore.NewTxManager()
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	// ---- Rate limiter (optional) ----
	var limiter *red.RateLimiter
	if cfg.Limits.Enabled {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Experts ----
	var chat expertAdapters.ChatClient
	switch cfg.AI.Provider {
	case "openai":
		chat, err = expertAdapters.NewOpenAIClient(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel, cfg.AI.MaxTokens, cfg.AI.PromptBudget)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai client failed")
		}
	case "gemini":
		chat, err = expertAdapters.NewGeminiClient(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiModel, cfg.AI.MaxTokens)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini client failed")
		}
	default:
		chat = expertAdapters.NewNoopClient()
		logger.Warn().Msg("using offline noop expert backend")
	}
	experts := expertAdapters.NewExperts(chat)

	// ---- Pipeline ----
	titles := title.NewGenerator(title.Config{
		MaxLength: cfg.Pipeline.TitleMaxLength,
		Style:     cfg.Pipeline.TitleStyle,
	})
	coord := pipeline.New(experts, render.NewRenderer(), titles, pipeline.Config{
		ExpertRetries: cfg.Pipeline.ExpertRetries,
		RetryBackoff:  cfg.Pipeline.RetryBackoff,
	}, logger)

	pool := worker.NewPool(cfg.Pipeline.Workers, logger)
	pool.Start(ctx)

	hub := fanout.NewHub()
	uc := usecase.NewResearchUseCase(sessions, activities, tm, coord, pool, hub, cfg.Pipeline.PersistRetries, logger)
	go uc.Run(ctx)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.AdminUser, cfg.Auth.AdminPassword, !cfg.Runtime.Dev, cfg.Auth.TokenTTL)
	srv := web.NewServer(uc, hub, auth, limiter, cfg.Limits.SubmitPerMinute, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
	pool.Stop()
}
