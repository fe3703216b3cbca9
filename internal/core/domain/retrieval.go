package domain

import "time"

type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// ChatMessage is a single message sent to a chat completion model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float64
}

type Answer struct {
	Text               string           `json:"text"`
	StandaloneQuestion string           `json:"standalone_question"`
	Sources            []RetrievedChunk `json:"sources"`
	// Grounded reports whether the answer overlaps the retrieved text. It is a
	// heuristic flag, the model is only instructed to stay in context.
	Grounded       bool    `json:"grounded"`
	GroundingScore float64 `json:"grounding_score"`
}

// StageTimeouts bound each external stage of the query pipeline.
type StageTimeouts struct {
	Rephrase time.Duration
	Retrieve time.Duration
	Generate time.Duration
}

// IndexSpec describes the single collection the system works against.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dotproduct"
	MetricEuclidean  = "euclidean"

	DefaultIndexDimension = 384
	DefaultRetrievalTopK  = 10
)

// ReindexRequest asks a worker to rebuild an index from an intermediate file.
type ReindexRequest struct {
	Path      string    `json:"path"`
	IndexName string    `json:"index_name"`
	CreatedAt time.Time `json:"created_at"`
}
