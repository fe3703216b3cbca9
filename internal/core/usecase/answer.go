package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// AnswerGenerator is the RAG chain: retrieve, fill the prompt, call the model.
// Staying inside the context is only requested from the model, not enforced.
type AnswerGenerator struct {
	retriever       ports.KnowledgeRetriever
	chat            ports.ChatModel
	generateTimeout time.Duration
}

func NewAnswerGenerator(
	retriever ports.KnowledgeRetriever,
	chat ports.ChatModel,
	timeouts domain.StageTimeouts,
) *AnswerGenerator {
	return &AnswerGenerator{
		retriever:       WithRetrieveDeadline(retriever, timeouts.Retrieve),
		chat:            chat,
		generateTimeout: timeouts.Generate,
	}
}

func (g *AnswerGenerator) Generate(ctx context.Context, question string) (string, []domain.RetrievedChunk, error) {
	sources, err := g.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}

	prompt := BuildAnswerPrompt(JoinContext(sources), question)

	genCtx, cancel := stageContext(ctx, g.generateTimeout)
	defer cancel()
	text, err := g.chat.Complete(genCtx, domain.ChatRequest{
		Messages:    []domain.ChatMessage{{Role: domain.RoleHuman, Content: prompt}},
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", stageError(genCtx, "generate answer", err))
	}
	return text, sources, nil
}

// JoinContext concatenates chunk bodies in retrieval order.
func JoinContext(chunks []domain.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.Chunk.PageContent)
	}
	return strings.Join(parts, contextSeparator)
}
