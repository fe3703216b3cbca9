package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// EncodeChunks writes the intermediate file: a pretty-printed JSON array with
// non-ASCII text and HTML characters left unescaped.
func EncodeChunks(w io.Writer, chunks []domain.Chunk) error {
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(chunks); err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	return nil
}

func DecodeChunks(r io.Reader) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if err := json.NewDecoder(r).Decode(&chunks); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode chunks", err)
	}
	return chunks, nil
}

func encodeChunksToBuffer(chunks []domain.Chunk) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := EncodeChunks(&buf, chunks); err != nil {
		return nil, err
	}
	return &buf, nil
}
