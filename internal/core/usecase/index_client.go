package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 64

// VectorIndexClient manages the lifecycle of one named collection. EnsureIndex
// is the offline create path; Connect is the serving path and never creates.
type VectorIndexClient struct {
	store     ports.VectorStore
	embedder  ports.Embedder
	batchSize int
	logger    *slog.Logger
}

func NewVectorIndexClient(store ports.VectorStore, embedder ports.Embedder, logger *slog.Logger) *VectorIndexClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorIndexClient{
		store:     store,
		embedder:  embedder,
		batchSize: defaultEmbedBatchSize,
		logger:    logger,
	}
}

func (c *VectorIndexClient) WithBatchSize(n int) *VectorIndexClient {
	if n > 0 {
		c.batchSize = n
	}
	return c
}

func normalizeSpec(spec domain.IndexSpec) (domain.IndexSpec, error) {
	if spec.Name == "" {
		return spec, domain.WrapError(domain.ErrInvalidInput, "index spec", errors.New("index name is required"))
	}
	if spec.Dimension <= 0 {
		spec.Dimension = domain.DefaultIndexDimension
	}
	if spec.Metric == "" {
		spec.Metric = domain.MetricCosine
	}
	return spec, nil
}

// EnsureIndex creates the collection unless it is already listed. A create that
// loses a race to another process counts as success.
func (c *VectorIndexClient) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return err
	}

	existing, err := c.store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if slices.Contains(existing, spec.Name) {
		c.logger.Info("vector index already exists", "index", spec.Name)
		return nil
	}

	if err := c.store.CreateCollection(ctx, spec); err != nil {
		exists, existsErr := c.store.CollectionExists(ctx, spec.Name)
		if existsErr == nil && exists {
			c.logger.Info("vector index created concurrently", "index", spec.Name)
			return nil
		}
		return fmt.Errorf("create collection %s: %w", spec.Name, err)
	}
	c.logger.Info("vector index created", "index", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	return nil
}

// Upsert embeds every chunk before writing, then issues one store write, so an
// embedding failure leaves the collection untouched.
func (c *VectorIndexClient) Upsert(ctx context.Context, spec domain.IndexSpec, chunks []domain.Chunk) error {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += c.batchSize {
		end := min(start+c.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.PageContent)
		}

		batch, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return domain.WrapProviderError("embed chunks", fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), len(texts)), false)
		}
		for _, vector := range batch {
			if err := checkDimension(spec, vector); err != nil {
				return err
			}
		}
		vectors = append(vectors, batch...)
	}

	if err := c.store.Upsert(ctx, spec.Name, chunks, vectors); err != nil {
		return fmt.Errorf("upsert into %s: %w", spec.Name, err)
	}
	return nil
}

// Connect attaches to an existing collection and fails with IndexNotFoundError
// otherwise.
func (c *VectorIndexClient) Connect(ctx context.Context, spec domain.IndexSpec) (*Collection, error) {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}
	exists, err := c.store.CollectionExists(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", spec.Name, err)
	}
	if !exists {
		return nil, &domain.IndexNotFoundError{Name: spec.Name}
	}
	return &Collection{spec: spec, store: c.store, embedder: c.embedder}, nil
}

// Collection is a handle to a collection known to exist.
type Collection struct {
	spec     domain.IndexSpec
	store    ports.VectorStore
	embedder ports.Embedder
}

// Query returns up to k chunks by decreasing similarity. There is no score
// threshold.
func (c *Collection) Query(ctx context.Context, text string, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = domain.DefaultRetrievalTopK
	}
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := checkDimension(c.spec, vector); err != nil {
		return nil, err
	}

	results, err := c.store.Search(ctx, c.spec.Name, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.spec.Name, err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func checkDimension(spec domain.IndexSpec, vector []float32) error {
	if len(vector) != spec.Dimension {
		return domain.WrapProviderError(
			"embed",
			fmt.Errorf("embedding dimension %d does not match index %s dimension %d", len(vector), spec.Name, spec.Dimension),
			false,
		)
	}
	return nil
}
