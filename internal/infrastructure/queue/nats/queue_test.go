package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/nats-io/nats.go"
)

func TestDecodeReindexRequest(t *testing.T) {
	req, err := DecodeReindexRequest([]byte(`{"path":"data/documents.json","index_name":"cafe-rag","created_at":"2026-10-18T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("DecodeReindexRequest() error = %v", err)
	}
	if req.Path != "data/documents.json" || req.IndexName != "cafe-rag" || req.CreatedAt.IsZero() {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeReindexRequestRejectsIncomplete(t *testing.T) {
	for _, payload := range []string{`not json`, `{"path":"x"}`, `{"index_name":"x"}`} {
		_, err := DecodeReindexRequest([]byte(payload))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("payload %q: expected invalid input, got %v", payload, err)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	if class := classifyPublishError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("canceled must not retry or record: %+v", class)
	}
	if class := classifyPublishError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("closed connection must be retryable: %+v", class)
	}
	if class := classifyPublishError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("bad subject must not be retryable: %+v", class)
	}
}

func TestAsTemporary(t *testing.T) {
	if asTemporary("publish", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	err := asTemporary("publish", nats.ErrNoServers)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	permanent := errors.New("boom")
	if got := asTemporary("publish", permanent); got != permanent {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}
}
