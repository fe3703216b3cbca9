package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
	"github.com/kirillkom/cafe-support-assistant/internal/core/usecase"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/session/memory"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/vector/qdrant"
)

// ProcessedFile is the intermediate chunk file name under PROCESSED_DATA_DIR.
const ProcessedFile = "all_documents.json"

// Serving is the connect-only assembly used by the API and MCP processes.
type Serving struct {
	Config config.Config

	Assistant *usecase.AssistantUseCase
	Retriever *usecase.DeadlineRetriever
	Purger    ports.IdleSessionPurger

	closeFn func()
}

// NewServing validates configuration and connects to an existing index. It
// never creates the index: a missing collection fails startup with
// domain.ErrIndexNotFound.
func NewServing(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Serving, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	res := &resources{logger: logger}
	ok := false
	defer func() {
		if !ok {
			res.close()
		}
	}()

	embedder, chat := buildProviders(cfg, logger)
	store, err := res.vectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sessions, err := res.sessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	index := usecase.NewVectorIndexClient(store, embedder, logger)
	collection, err := index.Connect(ctx, cfg.IndexSpec())
	if err != nil {
		return nil, err
	}

	timeouts := domain.StageTimeouts{
		Rephrase: seconds(cfg.LLMTimeoutSeconds),
		Retrieve: seconds(cfg.EmbedTimeoutSeconds + cfg.VectorTimeoutSeconds),
		Generate: seconds(cfg.LLMTimeoutSeconds),
	}
	retriever := usecase.WithRetrieveDeadline(usecase.NewRetriever(collection, cfg.RetrievalTopK), timeouts.Retrieve)
	assistant := usecase.NewAssistantUseCase(
		sessions,
		usecase.NewQueryRephraser(chat, timeouts.Rephrase),
		usecase.NewAnswerGenerator(retriever, chat, timeouts),
		usecase.NewGroundingChecker(cfg.GroundingMinOverlap),
		logger,
	)

	purger, _ := sessions.(ports.IdleSessionPurger)
	ok = true
	return &Serving{
		Config:    cfg,
		Assistant: assistant,
		Retriever: retriever,
		Purger:    purger,
		closeFn:   res.close,
	}, nil
}

// RunSessionJanitor purges idle sessions until ctx is done.
func (s *Serving) RunSessionJanitor(ctx context.Context, logger *slog.Logger) {
	idle := time.Duration(s.Config.SessionIdleTTLMinutes) * time.Minute
	if s.Purger == nil || idle <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	interval := idle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purger.PurgeIdle(ctx, idle)
			if err != nil {
				logger.Warn("session_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				attrs := []any{"purged", n}
				if sized, ok := s.Purger.(interface{ Len() int }); ok {
					attrs = append(attrs, "active", sized.Len())
				}
				logger.Info("session_purge", attrs...)
			}
		}
	}
}

func (s *Serving) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// NewFormatter wires the offline formatting pass. It needs no credentials.
func NewFormatter(cfg config.Config, logger *slog.Logger) (*usecase.FormatUseCase, error) {
	storage, err := localfs.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init raw data storage: %w", err)
	}
	return usecase.NewFormatUseCase(storage, chunking.NewFormatter(), logger), nil
}

// ProcessedPath is the default location of the intermediate chunk file.
func ProcessedPath(cfg config.Config) string {
	return filepath.Join(cfg.ProcessedDataDir, ProcessedFile)
}

// Indexing is the offline index build assembly used by the indexer CLI and
// the worker.
type Indexing struct {
	Config  config.Config
	Builder *usecase.BuildIndexUseCase

	closeFn func()
}

func NewIndexing(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Indexing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	res := &resources{logger: logger}
	ok := false
	defer func() {
		if !ok {
			res.close()
		}
	}()

	storage, err := localfs.New(cfg.ProcessedDataDir)
	if err != nil {
		return nil, fmt.Errorf("init processed data storage: %w", err)
	}
	embedder, _ := buildProviders(cfg, logger)
	store, err := res.vectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	index := usecase.NewVectorIndexClient(store, embedder, logger)
	ok = true
	return &Indexing{
		Config:  cfg,
		Builder: usecase.NewBuildIndexUseCase(storage, index, cfg.IndexSpec(), logger),
		closeFn: res.close,
	}, nil
}

func (i *Indexing) Close() {
	if i.closeFn != nil {
		i.closeFn()
	}
}

// NewQueue connects to NATS for reindex requests.
func NewQueue(cfg config.Config, logger *slog.Logger) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSReindexSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(queueResilience(logger)),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init reindex queue: %w", err)
	}
	return queue, nil
}

func buildProviders(cfg config.Config, logger *slog.Logger) (ports.Embedder, ports.ChatModel) {
	llmTimeout := seconds(cfg.LLMTimeoutSeconds)
	embedTimeout := seconds(cfg.EmbedTimeoutSeconds)

	switch cfg.LLMProvider {
	case config.LLMProviderOllama:
		client := ollama.New(
			cfg.OllamaURL,
			cfg.OllamaChatModel,
			cfg.OllamaEmbedModel,
			ollama.WithTimeout(llmTimeout),
			ollama.WithExecutor(resilience.NewExecutor(resilience.ForUpstream(llmTimeout, logger))),
		)
		return ollama.NewEmbedder(client), ollama.NewChatModel(client)
	default:
		chatClient := openai.New(
			cfg.LLMBaseURL,
			cfg.LLMAPIKey,
			cfg.LLMChatModel,
			openai.WithTimeout(llmTimeout),
			openai.WithExecutor(resilience.NewExecutor(resilience.ForUpstream(llmTimeout, logger))),
		)
		embedKey := cfg.EmbeddingAPIKey
		if embedKey == "" {
			embedKey = cfg.LLMAPIKey
		}
		embedClient := openai.New(
			cfg.EmbeddingBaseURL,
			embedKey,
			cfg.EmbeddingModel,
			openai.WithTimeout(embedTimeout),
			openai.WithExecutor(resilience.NewExecutor(resilience.ForUpstream(embedTimeout, logger))),
		)
		return openai.NewEmbedder(embedClient), openai.NewChatModel(chatClient)
	}
}

// queueResilience retries publishes for longer than upstream calls: a
// reindex request is not on a customer's critical path.
func queueResilience(logger *slog.Logger) resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.Retry.MaxAttempts = 5
	cfg.Retry.MaxBackoff = 2 * time.Second
	cfg.Logger = logger
	return cfg
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// resources tracks connections opened while wiring so a failed startup
// releases them.
type resources struct {
	logger  *slog.Logger
	pg      *sql.DB
	closers []func()
}

func (r *resources) postgres(cfg config.Config) (*sql.DB, error) {
	if r.pg != nil {
		return r.pg, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	r.pg = db
	r.closers = append(r.closers, func() { _ = db.Close() })
	return db, nil
}

func (r *resources) vectorStore(ctx context.Context, cfg config.Config) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendPGVector:
		db, err := r.postgres(cfg)
		if err != nil {
			return nil, err
		}
		store := pgvector.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return store, nil
	default:
		timeout := seconds(cfg.VectorTimeoutSeconds)
		return qdrant.New(
			cfg.QdrantURL,
			cfg.QdrantAPIKey,
			qdrant.WithTimeout(timeout),
			qdrant.WithExecutor(resilience.NewExecutor(resilience.ForUpstream(timeout, r.logger))),
		), nil
	}
}

func (r *resources) sessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		db, err := r.postgres(cfg)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewSessionRepository(db, cfg.SessionMaxTurns)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return repo, nil
	case config.SessionBackendSQLite:
		db, err := sqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		r.closers = append(r.closers, func() { _ = db.Close() })
		repo := sqlite.NewSessionRepository(db, cfg.SessionMaxTurns)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return repo, nil
	default:
		return memory.New(cfg.SessionMaxTurns), nil
	}
}

func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
