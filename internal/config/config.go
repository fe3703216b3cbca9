package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

const (
	VectorBackendQdrant   = "qdrant"
	VectorBackendPGVector = "pgvector"

	LLMProviderOpenAI = "openai"
	LLMProviderOllama = "ollama"

	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"
	SessionBackendSQLite   = "sqlite"
)

type Config struct {
	APIPort  string
	LogLevel string

	IndexName      string
	IndexDimension int
	IndexMetric    string
	RetrievalTopK  int

	SessionBackend        string
	SessionMaxTurns       int
	SessionIdleTTLMinutes int
	PostgresDSN           string
	SQLitePath            string
	SessionCookieSecure   bool

	VectorBackend string
	QdrantURL     string
	QdrantAPIKey  string

	LLMProvider  string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMChatModel string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string

	OllamaURL        string
	OllamaChatModel  string
	OllamaEmbedModel string

	LLMTimeoutSeconds    int
	EmbedTimeoutSeconds  int
	VectorTimeoutSeconds int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueWaitMS    int

	NATSURL            string
	NATSReindexSubject string

	DataDir          string
	ProcessedDataDir string
	ManifestPath     string

	WorkerMetricsPort   string
	GroundingMinOverlap float64
}

// Load reads an optional .env file and then the process environment. Values
// already present in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIPort:  mustEnv("API_PORT", "8000"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		IndexName:      mustEnv("INDEX_NAME", "customer-support-rag-system"),
		IndexDimension: mustEnvInt("INDEX_DIMENSION", domain.DefaultIndexDimension),
		IndexMetric:    mustEnv("INDEX_METRIC", domain.MetricCosine),
		RetrievalTopK:  mustEnvInt("RETRIEVAL_TOP_K", domain.DefaultRetrievalTopK),

		SessionBackend:        strings.ToLower(mustEnv("SESSION_BACKEND", SessionBackendMemory)),
		SessionMaxTurns:       mustEnvInt("SESSION_MAX_TURNS", domain.DefaultMaxSessionTurns),
		SessionIdleTTLMinutes: mustEnvInt("SESSION_IDLE_TTL_MINUTES", 60),
		PostgresDSN:           mustEnv("POSTGRES_DSN", ""),
		SQLitePath:            mustEnv("SQLITE_PATH", "./data/sessions.db"),
		SessionCookieSecure:   mustEnvBool("SESSION_COOKIE_SECURE", false),

		VectorBackend: strings.ToLower(mustEnv("VECTOR_BACKEND", VectorBackendQdrant)),
		QdrantURL:     mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:  mustEnv("QDRANT_API_KEY", ""),

		LLMProvider:  strings.ToLower(mustEnv("LLM_PROVIDER", LLMProviderOpenAI)),
		LLMBaseURL:   mustEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMAPIKey:    mustEnv("LLM_API_KEY", ""),
		LLMChatModel: mustEnv("LLM_CHAT_MODEL", "gemini-1.5-flash"),

		EmbeddingBaseURL: mustEnv("EMBEDDING_BASE_URL", "http://localhost:7997"),
		EmbeddingAPIKey:  mustEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:   mustEnv("EMBEDDING_MODEL", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaChatModel:  mustEnv("OLLAMA_CHAT_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "all-minilm"),

		LLMTimeoutSeconds:    mustEnvInt("LLM_TIMEOUT_SECONDS", 8),
		EmbedTimeoutSeconds:  mustEnvInt("EMBED_TIMEOUT_SECONDS", 5),
		VectorTimeoutSeconds: mustEnvInt("VECTOR_TIMEOUT_SECONDS", 5),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIQueueWaitMS:    mustEnvInt("API_QUEUE_WAIT_MS", 250),

		NATSURL:            mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSReindexSubject: mustEnv("NATS_REINDEX_SUBJECT", "cafe.index.rebuild"),

		DataDir:          mustEnv("DATA_DIR", "./data/raw"),
		ProcessedDataDir: mustEnv("PROCESSED_DATA_DIR", "./data/processed"),
		ManifestPath:     mustEnv("DATASET_MANIFEST", ""),

		WorkerMetricsPort:   mustEnv("WORKER_METRICS_PORT", "9090"),
		GroundingMinOverlap: mustEnvFloat("GROUNDING_MIN_OVERLAP", 0.2),
	}
}

// Validate checks the settings a serving or indexing process cannot start
// without. All missing variables are reported together.
func (c Config) Validate() error {
	if err := c.validateChoices(); err != nil {
		return err
	}

	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	if c.VectorBackend == VectorBackendQdrant {
		require("QDRANT_API_KEY", c.QdrantAPIKey)
	}
	if c.NeedsPostgres() {
		require("POSTGRES_DSN", c.PostgresDSN)
	}
	if c.LLMProvider == LLMProviderOpenAI {
		require("LLM_API_KEY", c.LLMAPIKey)
	}

	if len(missing) > 0 {
		return &domain.ConfigurationError{Missing: missing}
	}
	return nil
}

func (c Config) validateChoices() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"VECTOR_BACKEND", c.VectorBackend, []string{VectorBackendQdrant, VectorBackendPGVector}},
		{"LLM_PROVIDER", c.LLMProvider, []string{LLMProviderOpenAI, LLMProviderOllama}},
		{"SESSION_BACKEND", c.SessionBackend, []string{SessionBackendMemory, SessionBackendPostgres, SessionBackendSQLite}},
		{"INDEX_METRIC", c.IndexMetric, []string{domain.MetricCosine, domain.MetricDotProduct, domain.MetricEuclidean}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return domain.WrapError(
				domain.ErrConfiguration,
				"validate config",
				fmt.Errorf("%s=%q, expected one of %s", check.key, check.value, strings.Join(check.allowed, ", ")),
			)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// NeedsPostgres reports whether any backend is served from postgres.
func (c Config) NeedsPostgres() bool {
	return c.VectorBackend == VectorBackendPGVector || c.SessionBackend == SessionBackendPostgres
}

func (c Config) IndexSpec() domain.IndexSpec {
	return domain.IndexSpec{
		Name:      c.IndexName,
		Dimension: c.IndexDimension,
		Metric:    c.IndexMetric,
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
