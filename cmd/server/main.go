package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"

	"yobot/internal/catalog"
	"yobot/internal/config"
	"yobot/internal/logger"
	"yobot/internal/messaging"
	"yobot/internal/repository"
	"yobot/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Yobot WhatsApp assistant",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional PostgreSQL: catalog source, embedding import and interaction logs
	var repo *repository.PostgresRepository
	if cfg.PostgreSQL.Enabled {
		repo, err = repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			zlog.Fatal("Failed to prepare database schema", zap.Error(err))
		}
		zlog.Info("Connected to PostgreSQL database")
	}

	var metrics *service.Metrics
	if cfg.Metrics.Enabled {
		metrics = service.NewMetrics()
	}

	aiClient := service.NewOpenAIClient(&cfg.OpenAI, zlog)
	if aiClient.IsEnabled() {
		zlog.Info("OpenAI client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
			zap.Float64("chat_temperature", cfg.OpenAI.ChatTemperature),
			zap.Int("chat_max_tokens", cfg.OpenAI.ChatMaxTokens),
			zap.Int("max_retries", cfg.OpenAI.MaxRetries),
		)
	} else {
		zlog.Warn("OpenAI is disabled, questions will be answered with an apology",
			zap.String("hint", "set OPENAI_API_KEY to enable retrieval and answers"))
	}

	// Catalog snapshot and agent directory
	source, err := catalogSource(cfg, repo)
	if err != nil {
		zlog.Fatal("Invalid catalog source", zap.Error(err))
	}
	store := catalog.NewStore(source, zlog)
	store.OnSwap(func(c *catalog.Catalog) { metrics.CatalogSize(c.Len()) })
	if _, err := store.Reload(ctx); err != nil {
		zlog.Fatal("Failed to load catalog", zap.Error(err))
	}

	agents, err := service.LoadAgentDirectory(cfg.Catalog.AgentsPath, zlog)
	if err != nil {
		zlog.Fatal("Failed to load agent directory", zap.Error(err))
	}

	// Intent classifier, loaded once
	classifierModel, err := buildClassifier(ctx, cfg, aiClient, store.Current(), zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize intent classifier", zap.Error(err))
	}

	messenger := messaging.NewTwilioMessenger(cfg.Twilio, zlog)

	deps := service.AssistantDeps{
		States:        service.NewStateTracker(),
		Classifier:    service.NewIntentClassifier(classifierModel, metrics, zlog),
		Retriever:     service.NewRetriever(aiClient, cfg.Conversation.TopK, metrics),
		Agent:         service.NewAnsweringAgent(aiClient, service.NewHistoryStore(cfg.Conversation.HistoryTurns), cfg.Conversation.MaxReplyLength, metrics, zlog),
		Handoff:       service.NewHandoffResolver(store, agents),
		Catalog:       store,
		Notifier:      messenger,
		CancelKeyword: cfg.Conversation.CancelKeyword,
		Metrics:       metrics,
		Logger:        zlog,
	}
	if cfg.RabbitMQ.Enabled {
		publisher, err := messaging.NewHandoffPublisher(cfg.RabbitMQ, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		deps.Publisher = publisher
	}
	if repo != nil {
		deps.Interactions = repo
	}
	assistant := service.NewAssistant(deps)

	zlog.Info("Services initialized",
		zap.String("classifier", classifierModel.Name()),
		zap.Int("listings", store.Current().Len()),
		zap.Int("agents", agents.Len()),
		zap.Bool("twilio", messenger.IsEnabled()),
		zap.Bool("rabbitmq", deps.Publisher != nil),
		zap.Bool("postgres", repo != nil),
	)

	// Hot reload of file-based artifacts
	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.WatchDebounce, zlog)
		if err != nil {
			zlog.Fatal("Failed to start catalog watcher", zap.Error(err))
		}
		defer watcher.Close()

		if cfg.Catalog.Source != config.CatalogSourcePostgres {
			err := watcher.Add(cfg.Catalog.Path, func(ctx context.Context) error {
				_, err := store.Reload(ctx)
				return err
			})
			if err != nil {
				zlog.Fatal("Failed to watch catalog", zap.Error(err))
			}
		}
		if err := watcher.Add(cfg.Catalog.AgentsPath, agents.Reload); err != nil {
			zlog.Fatal("Failed to watch agent directory", zap.Error(err))
		}
		go watcher.Run(ctx)
	}

	rd := routerDeps{
		assistant: assistant,
		messenger: messenger,
		store:     store,
		agents:    agents,
		resolver:  deps.Handoff,
		repo:      repo,
		metrics:   metrics,
		logger:    zlog,
	}
	if cfg.Server.Simulator {
		// Log-only messenger: simulated handoffs never reach a real agent
		sandboxMessenger := messaging.NewTwilioMessenger(config.TwilioConfig{FromNumber: cfg.Twilio.FromNumber}, zlog.Named("simulator"))
		rd.simulator = assistant.Sandbox(sandboxMessenger)
		zlog.Warn("Message simulator enabled", zap.String("path", "/api/v1/messages"))
	}
	router := setupRouter(cfg, rd)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		zlog.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
	zlog.Info("Server stopped")
}

func catalogSource(cfg *config.Config, repo *repository.PostgresRepository) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourceCSV:
		return catalog.CSVSource{Path: cfg.Catalog.Path}, nil
	case config.CatalogSourceParquet:
		return catalog.ParquetSource{Path: cfg.Catalog.Path}, nil
	case config.CatalogSourcePostgres:
		if repo == nil {
			return nil, errors.New("postgres catalog needs a database connection")
		}
		return repo.CatalogSource(), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

func buildClassifier(ctx context.Context, cfg *config.Config, embedder service.Embedder, current *catalog.Catalog, zlog *zap.Logger) (service.LogitsModel, error) {
	switch cfg.Classifier.Backend {
	case config.ClassifierBackendHTTP:
		m := service.NewHTTPModel(cfg.Classifier)
		if cfg.Classifier.ProbeOnStart {
			probeCtx, cancel := context.WithTimeout(ctx, cfg.Classifier.Timeout)
			defer cancel()
			if err := m.Probe(probeCtx); err != nil {
				return nil, fmt.Errorf("classifier at %s is not ready: %w", cfg.Classifier.URL, err)
			}
		}
		zlog.Info("Intent classifier ready", zap.String("backend", "http"), zap.String("url", cfg.Classifier.URL))
		return m, nil

	case config.ClassifierBackendLinear:
		m, err := service.LoadLinearModel(filepath.Clean(cfg.Classifier.WeightsPath), embedder, cfg.Classifier.MaxLength)
		if err != nil {
			return nil, err
		}
		if current.Len() > 0 && current.Dimension() != m.Dimension() {
			zlog.Warn("classifier weights and catalog use different embedding sizes",
				zap.Int("classifier", m.Dimension()),
				zap.Int("catalog", current.Dimension()),
			)
		}
		zlog.Info("Intent classifier ready", zap.String("backend", "linear"), zap.Int("dimension", m.Dimension()))
		return m, nil

	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}
