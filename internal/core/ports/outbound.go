package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// ObjectStorage reads raw datasets and reads/writes the intermediate file.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// RecordFormatter turns one raw record at a 1-based position into a chunk.
type RecordFormatter interface {
	Format(source domain.ChunkSource, record json.RawMessage, position int) (domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore manages named collections and performs similarity search.
type VectorStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, spec domain.IndexSpec) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, name string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// ChatModel sends messages to a chat completion model and returns its text.
type ChatModel interface {
	Complete(ctx context.Context, req domain.ChatRequest) (string, error)
}

// SessionStore persists the trailing window of turns per session id.
type SessionStore interface {
	Snapshot(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)
	AppendExchange(ctx context.Context, sessionID, question, answer string) error
	Reset(ctx context.Context, sessionID string) error
}

// ReindexQueue publishes/consumes index rebuild requests.
type ReindexQueue interface {
	PublishReindex(ctx context.Context, req domain.ReindexRequest) error
	SubscribeReindex(ctx context.Context, handler func(context.Context, domain.ReindexRequest) error) error
}

// IdleSessionPurger drops sessions untouched for longer than idle.
type IdleSessionPurger interface {
	PurgeIdle(ctx context.Context, idle time.Duration) (int, error)
}
