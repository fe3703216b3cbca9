package qdrant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

const textPayloadKey = "text"

// pointNamespace scopes chunk ids so the same chunk always maps to the same
// point id and re-indexing overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("8d3f5a7e-2c61-4b0e-9f1a-6c4e2d9b7a10")

func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Upsert(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		if chunk.Metadata == nil {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("chunk %d has no metadata", i))
		}
		payload := chunk.Metadata.Fields()
		payload[textPayloadKey] = chunk.PageContent
		points = append(points, point{
			ID:      PointID(chunk.Metadata.ChunkID()),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	status, err := c.do(ctx, "upsert", http.MethodPut, collectionPath(name)+"/points?wait=true", map[string]any{"points": points}, nil, http.StatusNotFound)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &domain.IndexNotFoundError{Name: name}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, name string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	body := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var response struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.do(ctx, "search", http.MethodPost, collectionPath(name)+"/points/search", body, &response, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &domain.IndexNotFoundError{Name: name}
	}

	out := make([]domain.RetrievedChunk, 0, len(response.Result))
	for _, r := range response.Result {
		chunk, err := chunkFromPayload(r.Payload)
		if err != nil {
			return nil, domain.WrapProviderError("qdrant search", err, false)
		}
		out = append(out, domain.RetrievedChunk{Chunk: chunk, Score: r.Score})
	}
	return out, nil
}

func chunkFromPayload(payload map[string]any) (domain.Chunk, error) {
	text := getStringPayload(payload, textPayloadKey)
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != textPayloadKey {
			fields[k] = v
		}
	}
	meta, err := domain.MetadataFromFields(fields)
	if err != nil {
		return domain.Chunk{}, err
	}
	return domain.Chunk{PageContent: text, Metadata: meta}, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
