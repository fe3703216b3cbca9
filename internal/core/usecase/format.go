package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// FormatUseCase is the offline pass from raw datasets to the intermediate file.
// Any malformed record aborts the whole batch and nothing is written.
type FormatUseCase struct {
	storage   ports.ObjectStorage
	formatter ports.RecordFormatter
	logger    *slog.Logger
}

func NewFormatUseCase(storage ports.ObjectStorage, formatter ports.RecordFormatter, logger *slog.Logger) *FormatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormatUseCase{
		storage:   storage,
		formatter: formatter,
		logger:    logger,
	}
}

func (uc *FormatUseCase) FormatAll(ctx context.Context, manifest []domain.Dataset, outputKey string) (int, error) {
	if len(manifest) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "format datasets", errors.New("dataset manifest is empty"))
	}
	if outputKey == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "format datasets", errors.New("output path is required"))
	}

	chunks := make([]domain.Chunk, 0, 64)
	for _, dataset := range manifest {
		formatted, err := uc.formatDataset(ctx, dataset)
		if err != nil {
			return 0, err
		}
		uc.logger.Info("dataset formatted", "source", dataset.Source, "file", dataset.File, "chunks", len(formatted))
		chunks = append(chunks, formatted...)
	}

	buf, err := encodeChunksToBuffer(chunks)
	if err != nil {
		return 0, err
	}
	if err := uc.storage.Save(ctx, outputKey, buf); err != nil {
		return 0, fmt.Errorf("save %s: %w", outputKey, err)
	}
	return len(chunks), nil
}

func (uc *FormatUseCase) formatDataset(ctx context.Context, dataset domain.Dataset) ([]domain.Chunk, error) {
	if !dataset.Source.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "format dataset", fmt.Errorf("unknown source %q", dataset.Source))
	}
	if dataset.File == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "format dataset", fmt.Errorf("no file for source %q", dataset.Source))
	}

	rc, err := uc.storage.Open(ctx, dataset.File)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", dataset.File, err)
	}
	defer rc.Close()

	var records []json.RawMessage
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode dataset "+dataset.File, err)
	}

	chunks := make([]domain.Chunk, 0, len(records))
	for i, record := range records {
		chunk, err := uc.formatter.Format(dataset.Source, record, i+1)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", dataset.File, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
