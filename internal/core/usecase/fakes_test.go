package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

type memoryStorageFake struct {
	mu    sync.Mutex
	files map[string][]byte
	saves int
}

func newMemoryStorageFake() *memoryStorageFake {
	return &memoryStorageFake{files: make(map[string][]byte)}
}

func (f *memoryStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = b
	f.saves++
	return nil
}

func (f *memoryStorageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open", errors.New("no such file: "+key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// keywordEmbedderFake maps text onto a tiny keyword space so similarity is
// predictable in tests.
type keywordEmbedderFake struct {
	keywords  []string
	dimension int
	err       error
	calls     int
}

func newKeywordEmbedderFake(keywords ...string) *keywordEmbedderFake {
	return &keywordEmbedderFake{keywords: keywords, dimension: len(keywords) + 1}
}

func (f *keywordEmbedderFake) vector(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, f.dimension)
	for i, kw := range f.keywords {
		if i >= f.dimension {
			break
		}
		if strings.Contains(text, kw) {
			v[i] = 1
		}
	}
	v[f.dimension-1] = 0.1
	return v
}

func (f *keywordEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vector(text))
	}
	return out, nil
}

func (f *keywordEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

type storedPoint struct {
	chunk  domain.Chunk
	vector []float32
}

type memoryVectorStoreFake struct {
	mu          sync.Mutex
	collections map[string]map[string]storedPoint
	specs       map[string]domain.IndexSpec
	creates     int
	upserts     int
	searchLimit int
	createErr   error
	searchErr   error
	// createHook runs before a create is recorded, simulating a concurrent
	// creator.
	createHook func()
}

func newMemoryVectorStoreFake() *memoryVectorStoreFake {
	return &memoryVectorStoreFake{
		collections: make(map[string]map[string]storedPoint),
		specs:       make(map[string]domain.IndexSpec),
	}
}

func (f *memoryVectorStoreFake) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *memoryVectorStoreFake) CreateCollection(_ context.Context, spec domain.IndexSpec) error {
	if f.createHook != nil {
		f.createHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	if _, ok := f.collections[spec.Name]; !ok {
		f.collections[spec.Name] = make(map[string]storedPoint)
	}
	f.specs[spec.Name] = spec
	return nil
}

func (f *memoryVectorStoreFake) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *memoryVectorStoreFake) Upsert(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	points, ok := f.collections[name]
	if !ok {
		return &domain.IndexNotFoundError{Name: name}
	}
	f.upserts++
	for i, chunk := range chunks {
		points[chunk.Metadata.ChunkID()] = storedPoint{chunk: chunk, vector: vectors[i]}
	}
	return nil
}

func (f *memoryVectorStoreFake) Search(_ context.Context, name string, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	points, ok := f.collections[name]
	if !ok {
		return nil, &domain.IndexNotFoundError{Name: name}
	}
	out := make([]domain.RetrievedChunk, 0, len(points))
	for _, p := range points {
		out = append(out, domain.RetrievedChunk{Chunk: p.chunk, Score: cosine(query, p.vector)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Metadata.ChunkID() < out[j].Chunk.Metadata.ChunkID()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *memoryVectorStoreFake) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[name])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type chatModelFake struct {
	mu       sync.Mutex
	requests []domain.ChatRequest
	respond  func(ctx context.Context, req domain.ChatRequest) (string, error)
}

func (f *chatModelFake) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return "ok", nil
	}
	return respond(ctx, req)
}

func (f *chatModelFake) lastRequest() domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type sessionStoreFake struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string]*domain.ConversationSession
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{maxTurns: domain.DefaultMaxSessionTurns, sessions: make(map[string]*domain.ConversationSession)}
}

func (f *sessionStoreFake) Snapshot(_ context.Context, id string) ([]domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return []domain.ConversationTurn{}, nil
	}
	return s.Snapshot(), nil
}

func (f *sessionStoreFake) AppendExchange(_ context.Context, id, question, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		s = domain.NewConversationSession(f.maxTurns)
		f.sessions[id] = s
	}
	s.Append(question, answer)
	return nil
}

func (f *sessionStoreFake) Reset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type retrieverFake struct {
	query  string
	chunks []domain.RetrievedChunk
	err    error
}

func (f *retrieverFake) Retrieve(_ context.Context, query string) ([]domain.RetrievedChunk, error) {
	f.query = query
	return f.chunks, f.err
}

// blockingRetriever waits for its context like a stalled vector store.
type blockingRetriever struct{}

func (blockingRetriever) Retrieve(ctx context.Context, _ string) ([]domain.RetrievedChunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func menuChunk(id, content string) domain.Chunk {
	return domain.Chunk{
		PageContent: content,
		Metadata:    domain.MenuMetadata{Source: domain.SourceMenu, ItemID: id, Currency: "EGP", Lang: "ar"},
	}
}
