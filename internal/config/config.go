package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Catalog sources
const (
	CatalogSourceCSV      = "csv"
	CatalogSourceParquet  = "parquet"
	CatalogSourcePostgres = "postgres"
)

// Classifier backends
const (
	ClassifierBackendHTTP   = "http"
	ClassifierBackendLinear = "linear"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL   PostgreSQLConfig
	Server       ServerConfig
	Catalog      CatalogConfig
	Classifier   ClassifierConfig
	Conversation ConversationConfig
	Twilio       TwilioConfig
	RabbitMQ     RabbitMQConfig
	Logging      LoggingConfig
	Metrics      MetricsConfig
	OpenAI       OpenAIConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	GinMode         string
	AllowedOrigins  string
	AllowedMethods  string
	AllowedHeaders  string
	ShutdownTimeout time.Duration
	// Simulator exposes POST /api/v1/messages backed by an isolated assistant
	Simulator bool
}

// CatalogConfig describes where the listing catalog and agent directory come from
type CatalogConfig struct {
	Source        string // csv, parquet or postgres
	Path          string // artifact path for csv/parquet
	AgentsPath    string // property id -> agent phone JSON file
	Watch         bool   // reload on file changes
	WatchDebounce time.Duration
}

// ClassifierConfig holds intent classifier configuration
type ClassifierConfig struct {
	Backend      string // http or linear
	URL          string // inference endpoint for the http backend
	WeightsPath  string // weights artifact for the linear backend
	MaxLength    int
	Timeout      time.Duration
	ProbeOnStart bool
}

// ConversationConfig holds retrieval and chat settings
type ConversationConfig struct {
	TopK           int
	HistoryTurns   int
	MaxReplyLength int
	CancelKeyword  string
}

// TwilioConfig holds outbound WhatsApp settings
type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	FromNumber       string
	ValidateRequests bool
	PublicURL        string // externally visible webhook URL used for signature checks
	Enabled          bool
}

// RabbitMQConfig holds handoff event publishing settings
type RabbitMQConfig struct {
	URL          string
	Exchange     string
	ExchangeType string
	RoutingKey   string
	Enabled      bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // Model for the answering agent
	ChatTemperature     float64
	ChatTopP            float64
	ChatMaxTokens       int
	EmbeddingModel      string // Model for query and catalog embeddings
	EmbeddingDimensions int
	BatchSize           int
	Timeout             int
	MaxRetries          int
	Enabled             bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "yobot"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			Enabled:            getEnvAsBool("PG_ENABLED", false),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:         getEnv("GIN_MODE", "release"),
			AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods:  getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:  getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			Simulator:       getEnvAsBool("SIMULATOR_ENABLED", false),
		},
		Catalog: CatalogConfig{
			Source:        strings.ToLower(getEnv("CATALOG_SOURCE", CatalogSourceCSV)),
			Path:          getEnv("CATALOG_PATH", "data/openai_embeddings.csv"),
			AgentsPath:    getEnv("AGENTS_PATH", "data/agent_data.json"),
			Watch:         getEnvAsBool("CATALOG_WATCH", true),
			WatchDebounce: getEnvAsDuration("CATALOG_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Classifier: ClassifierConfig{
			Backend:      strings.ToLower(getEnv("CLASSIFIER_BACKEND", ClassifierBackendHTTP)),
			URL:          getEnv("CLASSIFIER_URL", "http://localhost:8081/predict"),
			WeightsPath:  getEnv("CLASSIFIER_WEIGHTS_PATH", "models/intent_linear.json"),
			MaxLength:    getEnvAsInt("CLASSIFIER_MAX_LENGTH", 50),
			Timeout:      getEnvAsDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
			ProbeOnStart: getEnvAsBool("CLASSIFIER_PROBE_ON_START", true),
		},
		Conversation: ConversationConfig{
			TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 5),
			HistoryTurns:   getEnvAsInt("CHAT_HISTORY_TURNS", 10),
			MaxReplyLength: getEnvAsInt("CHAT_MAX_REPLY_LENGTH", 1600),
			CancelKeyword:  strings.ToLower(getEnv("CANCEL_KEYWORD", "cancelar")),
		},
		Twilio: TwilioConfig{
			AccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:       getEnv("TWILIO_SANDBOX_NUMBER", "whatsapp:+14155238886"),
			ValidateRequests: getEnvAsBool("TWILIO_VALIDATE_REQUESTS", false),
			PublicURL:        getEnv("TWILIO_WEBHOOK_URL", ""),
			Enabled:          getEnv("TWILIO_ACCOUNT_SID", "") != "" && getEnv("TWILIO_AUTH_TOKEN", "") != "",
		},
		RabbitMQ: RabbitMQConfig{
			URL:          getEnv("RABBITMQ_URL", ""),
			Exchange:     getEnv("RABBITMQ_EXCHANGE", "yobot.handoffs"),
			ExchangeType: getEnv("RABBITMQ_EXCHANGE_TYPE", "topic"),
			RoutingKey:   getEnv("RABBITMQ_ROUTING_KEY", "handoff.requested"),
			Enabled:      getEnv("RABBITMQ_URL", "") != "",
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.2),
			ChatTopP:            getEnvAsFloat("OPENAI_CHAT_TOP_P", 1.0),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 600),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			Timeout:             getEnvAsInt("OPENAI_TIMEOUT", 30),
			MaxRetries:          getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
	}

	if cfg.PostgreSQL.DSN != "" {
		cfg.PostgreSQL.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that cannot start
func (c *Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case CatalogSourceCSV, CatalogSourceParquet:
		if c.Catalog.Path == "" {
			errs = append(errs, fmt.Errorf("CATALOG_PATH is required for %s catalogs", c.Catalog.Source))
		}
	case CatalogSourcePostgres:
		if !c.PostgreSQL.Enabled {
			errs = append(errs, errors.New("postgres catalog requires DATABASE_URL or PG_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source))
	}

	switch c.Classifier.Backend {
	case ClassifierBackendHTTP:
		if c.Classifier.URL == "" {
			errs = append(errs, errors.New("CLASSIFIER_URL is required for the http classifier"))
		}
	case ClassifierBackendLinear:
		if c.Classifier.WeightsPath == "" {
			errs = append(errs, errors.New("CLASSIFIER_WEIGHTS_PATH is required for the linear classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.Classifier.Backend))
	}

	if c.Classifier.MaxLength <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_MAX_LENGTH must be positive"))
	}
	if c.Conversation.TopK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_TOP_K must be positive"))
	}
	if c.Conversation.HistoryTurns < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_TURNS must not be negative"))
	}
	if c.Conversation.MaxReplyLength <= 0 {
		errs = append(errs, errors.New("CHAT_MAX_REPLY_LENGTH must be positive"))
	}
	if c.Conversation.CancelKeyword == "" {
		errs = append(errs, errors.New("CANCEL_KEYWORD must not be empty"))
	}
	if c.OpenAI.BatchSize <= 0 {
		errs = append(errs, errors.New("OPENAI_BATCH_SIZE must be positive"))
	}
	if c.Twilio.ValidateRequests && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_VALIDATE_REQUESTS needs TWILIO_AUTH_TOKEN"))
	}

	return errors.Join(errs...)
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
