package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
)

func baseConfig() config.Config {
	return config.Config{
		IndexName:       "cafe-test",
		IndexDimension:  4,
		IndexMetric:     domain.MetricCosine,
		RetrievalTopK:   10,
		SessionBackend:  config.SessionBackendMemory,
		SessionMaxTurns: 6,
		VectorBackend:   config.VectorBackendQdrant,
		QdrantAPIKey:    "qdrant-key",
		LLMProvider:     config.LLMProviderOllama,
		OllamaURL:       "http://127.0.0.1:1",

		LLMTimeoutSeconds:    1,
		EmbedTimeoutSeconds:  1,
		VectorTimeoutSeconds: 1,
	}
}

func TestNewServingFailsFastOnMissingCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.QdrantAPIKey = ""
	cfg.LLMProvider = config.LLMProviderOpenAI

	_, err := NewServing(context.Background(), cfg, nil)
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := strings.Join(cfgErr.Missing, ","); got != "QDRANT_API_KEY,LLM_API_KEY" {
		t.Fatalf("unexpected missing list %q", got)
	}
}

func TestNewServingNeverCreatesMissingIndex(t *testing.T) {
	var creates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			creates.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
	}))
	defer server.Close()

	cfg := baseConfig()
	cfg.QdrantURL = server.URL

	_, err := NewServing(context.Background(), cfg, nil)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
	if n := creates.Load(); n != 0 {
		t.Fatalf("serving path must not create collections, got %d PUTs", n)
	}
}

func TestNewServingConnectsToExistingIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"status":"green"},"status":"ok"}`))
	}))
	defer server.Close()

	cfg := baseConfig()
	cfg.QdrantURL = server.URL

	serving, err := NewServing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewServing() error = %v", err)
	}
	defer serving.Close()

	if serving.Assistant == nil || serving.Retriever == nil {
		t.Fatalf("expected assistant and retriever to be wired")
	}
	if serving.Purger == nil {
		t.Fatalf("memory session store must support idle purge")
	}
}

func TestRunSessionJanitorStopsWithContext(t *testing.T) {
	serving := &Serving{Config: config.Config{SessionIdleTTLMinutes: 1}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		serving.RunSessionJanitor(ctx, nil)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}

func TestQueueResilienceOutlastsUpstreamPolicy(t *testing.T) {
	cfg := queueResilience(nil)
	upstream := resilience.ForUpstream(time.Second, nil)
	if cfg.Retry.MaxAttempts <= upstream.Retry.MaxAttempts || cfg.AttemptTimeout != 0 {
		t.Fatalf("unexpected queue policy %+v", cfg)
	}
}

func TestProcessedPath(t *testing.T) {
	got := ProcessedPath(config.Config{ProcessedDataDir: "data/processed"})
	if !strings.HasSuffix(got, "data/processed/all_documents.json") {
		t.Fatalf("unexpected processed path %q", got)
	}
}
