package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// schemaLockKey serializes registry and collection DDL across processes.
const schemaLockKey int64 = 2026101801

const undefinedTable = "42P01"

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// Store keeps each collection in its own table and records name, dimension
// and metric in vector_collections.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	metrics map[string]string
}

func New(db *sql.DB) *Store {
	return &Store{db: db, metrics: make(map[string]string)}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_collections (
	name TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	metric TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_collections ORDER BY name`)
	if err != nil {
		return nil, wrapDBError("list collections", err)
	}
	defer rows.Close()

	names := make([]string, 0, 4)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapDBError("scan collection", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate collections", err)
	}
	return names, nil
}

func (s *Store) CreateCollection(ctx context.Context, spec domain.IndexSpec) error {
	if _, err := distanceOperator(spec.Metric); err != nil {
		return err
	}
	table := TableName(spec.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin create collection", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return wrapDBError("acquire schema lock", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO vector_collections (name, table_name, dimension, metric)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO NOTHING
`, spec.Name, table, spec.Dimension, spec.Metric); err != nil {
		return wrapDBError("register collection", err)
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL,
	embedding vector(%d) NOT NULL
)`, table, spec.Dimension)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return wrapDBError("create collection table", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError("commit create collection", err)
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, wrapDBError("check collection", err)
	}
	return exists, nil
}

// Upsert writes all chunks in one transaction.
func (s *Store) Upsert(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "pgvector upsert", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin upsert", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
`, TableName(name)))
	if err != nil {
		return s.notFoundOr(name, "prepare upsert", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if chunk.Metadata == nil {
			return domain.WrapError(domain.ErrInvalidInput, "pgvector upsert", fmt.Errorf("chunk %d has no metadata", i))
		}
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.Metadata.ChunkID(), chunk.PageContent, meta, pgv.NewVector(vectors[i])); err != nil {
			return s.notFoundOr(name, "upsert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError("commit upsert", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, name string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	metric, err := s.metric(ctx, name)
	if err != nil {
		return nil, err
	}
	op, err := distanceOperator(metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT content, metadata, embedding %[2]s $1 AS distance
FROM %[1]s
ORDER BY embedding %[2]s $1
LIMIT $2
`, TableName(name), op), pgv.NewVector(queryVector), limit)
	if err != nil {
		return nil, s.notFoundOr(name, "search", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var (
			content  string
			metaRaw  []byte
			distance float64
		)
		if err := rows.Scan(&content, &metaRaw, &distance); err != nil {
			return nil, wrapDBError("scan search row", err)
		}
		meta, err := domain.ParseMetadata(metaRaw)
		if err != nil {
			return nil, domain.WrapProviderError("pgvector search", err, false)
		}
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{PageContent: content, Metadata: meta},
			Score: similarity(metric, distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate search rows", err)
	}
	return out, nil
}

func (s *Store) metric(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	metric, ok := s.metrics[name]
	s.mu.Unlock()
	if ok {
		return metric, nil
	}

	err := s.db.QueryRowContext(ctx, `SELECT metric FROM vector_collections WHERE name = $1`, name).Scan(&metric)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.IndexNotFoundError{Name: name}
	}
	if err != nil {
		return "", wrapDBError("load collection metric", err)
	}

	s.mu.Lock()
	s.metrics[name] = metric
	s.mu.Unlock()
	return metric, nil
}

func (s *Store) notFoundOr(name, operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return &domain.IndexNotFoundError{Name: name}
	}
	return wrapDBError(operation, err)
}

// TableName maps a collection name onto a safe, unquoted identifier.
func TableName(collection string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(collection), "_")
	name = "kb_" + strings.Trim(name, "_")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func distanceOperator(metric string) (string, error) {
	switch metric {
	case "", domain.MetricCosine:
		return "<=>", nil
	case domain.MetricDotProduct:
		return "<#>", nil
	case domain.MetricEuclidean:
		return "<->", nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "pgvector distance", fmt.Errorf("unsupported metric %q", metric))
	}
}

// similarity turns a pgvector distance into a higher-is-better score.
func similarity(metric string, distance float64) float64 {
	switch metric {
	case domain.MetricDotProduct:
		return -distance
	case domain.MetricEuclidean:
		return 1 / (1 + distance)
	default:
		return 1 - distance
	}
}

func wrapDBError(operation string, err error) error {
	return domain.WrapProviderError("pgvector "+operation, err, true)
}
