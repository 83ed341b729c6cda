// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/catalog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/config"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/handler"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/middleware"
	natsclient "github.com/capitalize-ai/movie-ticketing-assistant/internal/nats"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/projector"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/service"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/store"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/supabase"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	flagSet := pflag.NewFlagSet("movie-ticketing-api", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ServerPort, "port", cfg.ServerPort, "HTTP listen port")
	flagSet.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "chat store backend: memory, supabase or nats")
	flagSet.StringVar(&cfg.CatalogFixture, "catalog-fixture", cfg.CatalogFixture, "YAML movie catalog to serve instead of the hosted one")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flagSet.BoolVar(&cfg.NATSJournalEnabled, "journal", cfg.NATSJournalEnabled, "publish committed chat events to NATS JetStream")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("store", cfg.StoreBackend))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "movie-ticketing-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var sb *supabase.Client
	if cfg.HasSupabase() {
		sb = supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseTimeout)
	}

	var natsClient *natsclient.Client
	if cfg.NeedsNATS() {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()
	}

	chatStore, err := newChatStore(ctx, cfg, sb, natsClient)
	if err != nil {
		log.Fatal("failed to initialize chat store", zap.Error(err))
	}

	var journal service.Journal
	if cfg.NATSJournalEnabled {
		j := natsclient.NewJournal(natsClient)
		if err := j.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure journal stream", zap.Error(err))
		}
		journal = j
	}

	llmClient, openaiClient := newLLMClients(cfg, log)

	movies, err := newCatalog(cfg, sb, log)
	if err != nil {
		log.Fatal("failed to initialize catalog", zap.Error(err))
	}

	var searcher handler.Searcher = movies
	if hosted, ok := movies.(*catalog.Hosted); ok && openaiClient != nil {
		embedder := llm.NewOpenAIEmbedder(openaiClient, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		searcher = catalog.NewSemanticSearcher(embedder, hosted, hosted)
	}

	// Services
	proj := projector.New(cfg.SeatPrice, log.Named("projector"))
	chatSvc := service.NewChatService(chatStore, journal, proj, log.Named("chats"), cfg.SessionIdleTTL)

	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go chatSvc.Run(evictCtx)
	dispatcher := service.NewDispatcher(chatSvc, llmClient, movies, service.DispatcherConfig{
		Model:          cfg.LLMModel,
		SeatPrice:      cfg.SeatPrice,
		MatchThreshold: cfg.SearchMatchThreshold,
		CodeDelay:      cfg.PaymentCodeDelay,
		SettleDelay:    cfg.PaymentSettleDelay,
	}, log.Named("dispatcher"))

	// Handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	actionHandler := handler.NewActionHandler(dispatcher, log)
	searchHandler := handler.NewSearchHandler(searcher, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
		Post("/functions/v1/search", searchHandler.Search)

	r.Route("/api/v1/chats", func(r chi.Router) {
		// Anonymous users may chat; their chats are not saved.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/", chatHandler.Create)
			r.Get("/{id}/ui", chatHandler.UI)
			r.Post("/{id}/messages", actionHandler.SubmitMessage)
			r.Post("/{id}/payment/code", actionHandler.RequestCode)
			r.Post("/{id}/payment/validate", actionHandler.ValidateCode)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/", chatHandler.List)
			r.Delete("/{id}", chatHandler.Delete)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newChatStore(ctx context.Context, cfg *config.Config, sb *supabase.Client, nc *natsclient.Client) (store.ChatStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSupabase:
		if sb == nil {
			return nil, errors.New("supabase store requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
		return store.NewSupabase(sb), nil
	case config.StoreNATS:
		return natsclient.NewChatStore(ctx, nc)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// newLLMClients returns the chat model client, which is nil when no key is
// configured, and the OpenAI client used for embeddings when available.
func newLLMClients(cfg *config.Config, log *logger.Logger) (llm.Client, *llm.OpenAIClient) {
	var openaiClient *llm.OpenAIClient
	switch {
	case cfg.OpenAIAPIKey != "" && cfg.OpenAIBaseURL != "":
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		oc.BaseURL = cfg.OpenAIBaseURL
		openaiClient = llm.NewOpenAIClientWithConfig(oc)
	case cfg.OpenAIAPIKey != "":
		c, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client", zap.Error(err))
		} else {
			openaiClient = c
		}
	}

	switch llm.Provider(cfg.DefaultLLM) {
	case llm.ProviderAnthropic:
		client, err := llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, model turns disabled", zap.Error(err))
			return nil, openaiClient
		}
		return client, openaiClient
	default:
		if openaiClient == nil {
			log.Warn("no OpenAI API key, model turns disabled")
			return nil, nil
		}
		return openaiClient, openaiClient
	}
}

func newCatalog(cfg *config.Config, sb *supabase.Client, log *logger.Logger) (catalog.Catalog, error) {
	if cfg.CatalogFixture != "" {
		log.Info("serving catalog fixture", zap.String("path", cfg.CatalogFixture))
		return catalog.LoadFixture(cfg.CatalogFixture)
	}
	if sb != nil {
		return catalog.NewHosted(sb), nil
	}
	log.Warn("no catalog configured, serving an empty one")
	return catalog.NewFixture(nil), nil
}
