package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func testSpec(dimension int) domain.IndexSpec {
	return domain.IndexSpec{Name: "cafe", Dimension: dimension, Metric: domain.MetricCosine}
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	store := newMemoryVectorStoreFake()
	client := NewVectorIndexClient(store, newKeywordEmbedderFake("latte"), nil)

	for i := 0; i < 2; i++ {
		if err := client.EnsureIndex(context.Background(), testSpec(2)); err != nil {
			t.Fatalf("EnsureIndex() call %d error = %v", i, err)
		}
	}
	if store.creates != 1 {
		t.Fatalf("expected one create, got %d", store.creates)
	}
}

func TestEnsureIndexTreatsLostCreateRaceAsSuccess(t *testing.T) {
	store := newMemoryVectorStoreFake()
	store.createErr = errors.New("409 conflict")
	store.createHook = func() {
		store.mu.Lock()
		store.collections["cafe"] = map[string]storedPoint{}
		store.mu.Unlock()
	}
	client := NewVectorIndexClient(store, newKeywordEmbedderFake("latte"), nil)

	if err := client.EnsureIndex(context.Background(), testSpec(2)); err != nil {
		t.Fatalf("expected lost race to succeed, got %v", err)
	}
}

func TestEnsureIndexReportsCreateFailure(t *testing.T) {
	store := newMemoryVectorStoreFake()
	store.createErr = errors.New("boom")
	client := NewVectorIndexClient(store, newKeywordEmbedderFake("latte"), nil)

	if err := client.EnsureIndex(context.Background(), testSpec(2)); err == nil {
		t.Fatalf("expected create error")
	}
}

func TestConnectMissingIndexNeverCreates(t *testing.T) {
	store := newMemoryVectorStoreFake()
	client := NewVectorIndexClient(store, newKeywordEmbedderFake("latte"), nil)

	_, err := client.Connect(context.Background(), testSpec(2))
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
	var notFound *domain.IndexNotFoundError
	if !errors.As(err, &notFound) || notFound.Name != "cafe" {
		t.Fatalf("expected IndexNotFoundError naming cafe, got %v", err)
	}
	if store.creates != 0 {
		t.Fatalf("connect must not create collections, got %d creates", store.creates)
	}
	if exists, _ := store.CollectionExists(context.Background(), "cafe"); exists {
		t.Fatalf("collection must not exist after connect")
	}
}

func TestUpsertRejectsDimensionMismatchBeforeWriting(t *testing.T) {
	store := newMemoryVectorStoreFake()
	embedder := newKeywordEmbedderFake("latte")
	client := NewVectorIndexClient(store, embedder, nil)
	spec := testSpec(384)
	if err := client.EnsureIndex(context.Background(), spec); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	err := client.Upsert(context.Background(), spec, []domain.Chunk{menuChunk("menu_001", "Latte")})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if store.upserts != 0 {
		t.Fatalf("expected no store writes, got %d", store.upserts)
	}
}

func TestUpsertEmbedsInBatchesAndWritesOnce(t *testing.T) {
	store := newMemoryVectorStoreFake()
	embedder := newKeywordEmbedderFake("latte")
	client := NewVectorIndexClient(store, embedder, nil).WithBatchSize(2)
	spec := testSpec(2)
	if err := client.EnsureIndex(context.Background(), spec); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	chunks := []domain.Chunk{
		menuChunk("menu_001", "a"),
		menuChunk("menu_002", "b"),
		menuChunk("menu_003", "c"),
	}
	if err := client.Upsert(context.Background(), spec, chunks); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if embedder.calls != 2 {
		t.Fatalf("expected 2 embed batches, got %d", embedder.calls)
	}
	if store.upserts != 1 {
		t.Fatalf("expected one store write, got %d", store.upserts)
	}
	if store.count("cafe") != 3 {
		t.Fatalf("expected 3 points, got %d", store.count("cafe"))
	}
}

func TestUpsertEmbedFailureAbortsBatch(t *testing.T) {
	store := newMemoryVectorStoreFake()
	embedder := newKeywordEmbedderFake("latte")
	client := NewVectorIndexClient(store, embedder, nil)
	spec := testSpec(2)
	_ = client.EnsureIndex(context.Background(), spec)

	embedder.err = domain.WrapProviderError("embed", errors.New("unavailable"), true)
	err := client.Upsert(context.Background(), spec, []domain.Chunk{menuChunk("menu_001", "a")})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if store.count("cafe") != 0 {
		t.Fatalf("expected no points after failed upsert")
	}
}

func TestQueryDefaultsToTopTen(t *testing.T) {
	store := newMemoryVectorStoreFake()
	client := NewVectorIndexClient(store, newKeywordEmbedderFake("latte"), nil)
	spec := testSpec(2)
	_ = client.EnsureIndex(context.Background(), spec)

	collection, err := client.Connect(context.Background(), spec)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := collection.Query(context.Background(), "latte", 0); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if store.searchLimit != 10 {
		t.Fatalf("expected limit 10, got %d", store.searchLimit)
	}
}
