package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// BuildIndexUseCase loads the intermediate file, ensures the collection and
// upserts every chunk.
type BuildIndexUseCase struct {
	storage ports.ObjectStorage
	index   *VectorIndexClient
	spec    domain.IndexSpec
	logger  *slog.Logger
}

func NewBuildIndexUseCase(
	storage ports.ObjectStorage,
	index *VectorIndexClient,
	spec domain.IndexSpec,
	logger *slog.Logger,
) *BuildIndexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildIndexUseCase{
		storage: storage,
		index:   index,
		spec:    spec,
		logger:  logger,
	}
}

func (uc *BuildIndexUseCase) Build(ctx context.Context, inputKey, indexName string) (int, error) {
	spec := uc.spec
	if indexName != "" {
		spec.Name = indexName
	}

	rc, err := uc.storage.Open(ctx, inputKey)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", inputKey, err)
	}
	chunks, err := DecodeChunks(rc)
	rc.Close()
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", inputKey, err)
	}

	if err := uc.index.EnsureIndex(ctx, spec); err != nil {
		return 0, err
	}
	if err := uc.index.Upsert(ctx, spec, chunks); err != nil {
		return 0, err
	}

	uc.logger.Info("index built", "index", spec.Name, "input", inputKey, "chunks", len(chunks))
	return len(chunks), nil
}
