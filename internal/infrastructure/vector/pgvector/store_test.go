package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return New(db), mock, func() { _ = db.Close() }
}

func TestTableNameSanitizes(t *testing.T) {
	if got := TableName("customer-support-rag-system"); got != "kb_customer_support_rag_system" {
		t.Fatalf("unexpected table name %q", got)
	}
	if got := TableName("Cafe; DROP TABLE x"); got != "kb_cafe_drop_table_x" {
		t.Fatalf("unexpected table name %q", got)
	}
}

func TestCreateCollectionRegistersAndCreatesTable(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO vector_collections").
		WithArgs("cafe", "kb_cafe", 384, "cosine").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS kb_cafe \(`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.CreateCollection(context.Background(), domain.IndexSpec{Name: "cafe", Dimension: 384, Metric: domain.MetricCosine})
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCollectionExists(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT EXISTS").WithArgs("cafe").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := store.CollectionExists(context.Background(), "cafe")
	if err != nil || exists {
		t.Fatalf("expected missing collection, got %v %v", exists, err)
	}
}

func TestUpsertRunsInOneTransaction(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	chunks := []domain.Chunk{
		{PageContent: "a", Metadata: domain.MenuMetadata{Source: domain.SourceMenu, ItemID: "menu_001"}},
		{PageContent: "b", Metadata: domain.NoteMetadata{Source: domain.SourceNotes, NoteID: "note_001"}},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO kb_cafe")
	prep.ExpectExec().WithArgs("menu_001", "a", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("note_001", "b", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Upsert(context.Background(), "cafe", chunks, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertMissingTableIsIndexNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO kb_cafe").WillReturnError(&pgconn.PgError{Code: "42P01"})
	mock.ExpectRollback()

	err := store.Upsert(context.Background(), "cafe", []domain.Chunk{{PageContent: "a", Metadata: domain.MenuMetadata{Source: domain.SourceMenu, ItemID: "menu_001"}}}, [][]float32{{1}})
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}

func TestSearchScoresCosineSimilarity(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT metric FROM vector_collections").WithArgs("cafe").
		WillReturnRows(sqlmock.NewRows([]string{"metric"}).AddRow("cosine"))
	mock.ExpectQuery(`SELECT content, metadata, embedding <=> \$1 AS distance`).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"content", "metadata", "distance"}).
			AddRow("[Menu Item] latte", []byte(`{"source":"menu","item_id":"menu_001","prices":"Medium:45, Large:55"}`), 0.25))

	results, err := store.Search(context.Background(), "cafe", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.75 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Chunk.Metadata.ChunkID() != "menu_001" {
		t.Fatalf("unexpected chunk %+v", results[0].Chunk)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchUnknownCollection(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT metric FROM vector_collections").WithArgs("cafe").
		WillReturnRows(sqlmock.NewRows([]string{"metric"}))

	_, err := store.Search(context.Background(), "cafe", []float32{1}, 10)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}
