package ports

import (
	"context"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// Assistant is the inbound contract for the conversational RAG pipeline.
type Assistant interface {
	Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error)
	Reset(ctx context.Context, sessionID string) error
}

// KnowledgeRetriever returns the most relevant chunks for a query.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error)
}

// DocumentFormatter is the inbound contract for the offline formatting pass.
type DocumentFormatter interface {
	FormatAll(ctx context.Context, manifest []domain.Dataset, outputKey string) (int, error)
}

// IndexBuilder is the inbound contract for the offline index build.
type IndexBuilder interface {
	Build(ctx context.Context, inputKey, indexName string) (int, error)
}
