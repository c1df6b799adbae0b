package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oliv/internal/config"
	"oliv/internal/handler"
	"oliv/internal/logger"
	"oliv/internal/repository"
	"oliv/internal/resilience"
	"oliv/internal/service"
	"oliv/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zlog.Sync() }()

	zlog.Info("Oliv backend",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Database is optional: without it turns are not logged and feedback is unavailable
	var (
		repo *repository.PostgresRepository
		err  error
	)
	if cfg.PostgreSQL.Enabled {
		dsn := cfg.GetPostgreSQLDSN()
		if cfg.PostgreSQL.RunMigrations {
			version, err := repository.RunMigrations(dsn, cfg.PostgreSQL.MigrationsPath)
			if err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			zlog.Info("database migrations applied", zap.Uint("version", version))
		}

		repo, err = repository.NewPostgresRepository(dsn, cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
		if err != nil {
			return err
		}
		defer repo.Close()
		zlog.Info("connected to PostgreSQL")
	} else {
		zlog.Warn("no database configured, turn logging and feedback are disabled")
	}

	priceTable, err := loadPriceTable(cfg, repo, zlog)
	if err != nil {
		return err
	}

	predictor, err := service.LoadPredictor(cfg.Predictor.ModelPath, cfg.Predictor.ColumnsPath)
	if err != nil {
		zlog.Warn("price model not loaded, estimates are unavailable", zap.Error(err))
		predictor = service.DisabledPredictor()
	}

	store, err := newSessionStore(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	settings := resilience.Settings{
		MaxRetries:      cfg.Resilience.MaxRetries,
		InitialBackoff:  cfg.Resilience.InitialBackoff,
		MaxBackoff:      cfg.Resilience.MaxBackoff,
		BreakerFailures: cfg.Resilience.BreakerFailures,
		BreakerOpenFor:  cfg.Resilience.BreakerOpenFor,
	}
	openaiGuard := resilience.NewGuard("openai", settings, zlog)
	researchGuard := resilience.NewGuard("perplexity", settings, zlog)
	openaiClient := service.NewOpenAIClient(service.OpenAIClientConfig(&cfg.OpenAI), openaiGuard, zlog)
	researchClient := service.NewOpenAIClient(service.PerplexityClientConfig(&cfg.Perplexity), researchGuard, zlog)
	if openaiClient.IsEnabled() {
		zlog.Info("OpenAI client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel))
	}
	if researchClient.IsEnabled() {
		zlog.Info("answer service client initialized",
			zap.String("api_base", cfg.Perplexity.APIBase),
			zap.String("model", cfg.Perplexity.Model))
	}

	prompts, err := service.LoadDefaultPrompts()
	if err != nil {
		return err
	}

	// Initialize services
	prices := service.NewPriceService(priceTable, predictor, zlog)
	listings := service.NewListingProvider(
		researchClient,
		prompts,
		service.NewRanker(0.3, 0.7),
		cfg.Listings.MaxResults,
		cfg.Listings.AllowedDomains,
		zlog,
	)
	dispatcher := service.NewDispatcher(prices, listings, service.NewPersonaResponder(openaiClient, prompts, zlog), zlog)

	checks := []handler.DependencyCheck{
		{Name: openaiGuard.Name(), Check: openaiGuard.Check},
		{Name: researchGuard.Name(), Check: researchGuard.Check},
	}

	var turns service.TurnLogger
	var feedback handler.FeedbackStore
	if repo != nil {
		turns = repo
		feedback = repo
		checks = append(checks, handler.DependencyCheck{Name: "postgres", Check: repo.Ping})
	}
	var embedder service.Embedder
	if cfg.OpenAI.EmbedTurns && repo != nil {
		embedder = openaiClient
	}
	chat := service.NewChatService(store, service.NewInterpreter(openaiClient, prompts, zlog), dispatcher, turns, embedder, zlog)

	router := handler.NewRouter(handler.Routes{
		Chat:     handler.NewChatHandler(chat, cfg.Session.TTL, cfg.Server.CookieSecure, zlog),
		Listings: handler.NewListingHandler(listings),
		Price:    handler.NewPriceHandler(prices),
		Feedback: handler.NewFeedbackHandler(feedback),
		Build:    handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
		Checks:   checks,
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: cfg.Server.AllowedMethods,
			AllowedHeaders: cfg.Server.AllowedHeaders,
		},
		Logger: zlog.Named("http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
	}
	chat.Wait()
	zlog.Info("server stopped")
	return nil
}

func loadPriceTable(cfg *config.Config, repo *repository.PostgresRepository, zlog *zap.Logger) (service.PriceTable, error) {
	if cfg.PriceStats.Source == "postgres" {
		if repo == nil {
			return nil, errors.New("price stats source is postgres but no database is configured")
		}
		zlog.Info("using PostgreSQL price table")
		return repo, nil
	}

	table, err := repository.LoadCSVPriceTable(cfg.PriceStats.CSVPath)
	if errors.Is(err, os.ErrNotExist) {
		zlog.Warn("price table CSV not found, historical ranges are unavailable", zap.String("path", cfg.PriceStats.CSVPath))
		return repository.EmptyPriceTable(), nil
	}
	if err != nil {
		return nil, err
	}
	zlog.Info("price table loaded", zap.String("path", cfg.PriceStats.CSVPath), zap.Int("rows", table.Len()))
	return table, nil
}

func newSessionStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (session.Store, error) {
	if cfg.Redis.Enabled {
		client, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		zlog.Info("using Redis session store", zap.Duration("ttl", cfg.Session.TTL))
		return session.NewRedisStore(client, cfg.Session.TTL, cfg.Session.MaxMessages), nil
	}

	store := session.NewMemoryStore(cfg.Session.TTL, cfg.Session.MaxMessages)
	go store.RunJanitor(ctx, time.Minute)
	zlog.Info("using in-memory session store", zap.Duration("ttl", cfg.Session.TTL))
	return store, nil
}
