package main

import (
	"net/http"
	"strings"
	"time"

	"yobot/internal/catalog"
	"yobot/internal/config"
	"yobot/internal/handler"
	"yobot/internal/messaging"
	"yobot/internal/repository"
	"yobot/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type routerDeps struct {
	assistant handler.MessageHandler
	simulator handler.MessageHandler
	messenger service.Notifier
	store     *catalog.Store
	agents    *service.AgentDirectory
	resolver  *service.HandoffResolver
	repo      *repository.PostgresRepository
	metrics   *service.Metrics
	logger    *zap.Logger
}

func setupRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitList(cfg.Server.AllowedOrigins)
	corsConfig.AllowMethods = splitList(cfg.Server.AllowedMethods)
	corsConfig.AllowHeaders = splitList(cfg.Server.AllowedHeaders)
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to the WhatsApp bot server!")
	})

	router.GET("/health", func(c *gin.Context) {
		current := d.store.Current()
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "yobot",
			"version":    Version,
			"listings":   current.Len(),
			"loaded_at":  current.LoadedAt(),
			"agents":     d.agents.Len(),
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	conversationHandler := handler.NewConversationHandler(d.assistant, d.messenger, d.metrics, d.logger)
	if cfg.Twilio.ValidateRequests {
		validator := messaging.NewSignatureValidator(cfg.Twilio.AuthToken)
		router.POST("/whatsapp", handler.TwilioSignature(validator, cfg.Twilio.PublicURL, d.logger), conversationHandler.WhatsApp)
	} else {
		router.POST("/whatsapp", conversationHandler.WhatsApp)
	}

	var listingStore handler.ListingStore
	if d.repo != nil {
		listingStore = d.repo
	}
	listingHandler := handler.NewListingHandler(d.store, listingStore)
	handoffHandler := handler.NewHandoffHandler(d.resolver)
	catalogHandler := handler.NewCatalogHandler(d.store, d.agents, d.logger)

	apiV1 := router.Group("/api/v1")
	{
		if d.simulator != nil {
			simulatorHandler := handler.NewConversationHandler(d.simulator, nil, nil, d.logger)
			apiV1.POST("/messages", simulatorHandler.Message)
		}
		apiV1.GET("/listings/:id", listingHandler.GetListing)
		apiV1.GET("/handoff/:id", handoffHandler.Lookup)
		apiV1.POST("/catalog/reload", catalogHandler.Reload)

		if d.repo != nil {
			embeddingHandler := handler.NewEmbeddingHandler(d.repo, cfg.OpenAI.EmbeddingDimensions)
			apiV1.POST("/embeddings/batch", embeddingHandler.BatchUpdate)
		}
	}

	if cfg.Metrics.Enabled && d.metrics != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
