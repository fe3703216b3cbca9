package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// Retriever returns the top-k chunks for a query. No caching, no re-ranking.
type Retriever struct {
	collection *Collection
	topK       int
}

func NewRetriever(collection *Collection, topK int) *Retriever {
	if topK <= 0 {
		topK = domain.DefaultRetrievalTopK
	}
	return &Retriever{collection: collection, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	return r.collection.Query(ctx, query, r.topK)
}

// DeadlineRetriever bounds every lookup by the retrieve-stage timeout so
// direct search callers get the same ErrTimeout as the answer chain.
type DeadlineRetriever struct {
	next    ports.KnowledgeRetriever
	timeout time.Duration
}

// WithRetrieveDeadline wraps next; a non-positive timeout only adds
// cancellation.
func WithRetrieveDeadline(next ports.KnowledgeRetriever, timeout time.Duration) *DeadlineRetriever {
	if bounded, ok := next.(*DeadlineRetriever); ok {
		next = bounded.next
	}
	return &DeadlineRetriever{next: next, timeout: timeout}
}

func (r *DeadlineRetriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	retrieveCtx, cancel := stageContext(ctx, r.timeout)
	defer cancel()
	sources, err := r.next.Retrieve(retrieveCtx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", stageError(retrieveCtx, "retrieve context", err))
	}
	return sources, nil
}
