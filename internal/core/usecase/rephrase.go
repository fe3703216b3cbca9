package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// QueryRephraser rewrites a follow-up question into a standalone one. The model
// output is not validated beyond being non-blank.
type QueryRephraser struct {
	chat    ports.ChatModel
	timeout time.Duration
}

func NewQueryRephraser(chat ports.ChatModel, timeout time.Duration) *QueryRephraser {
	return &QueryRephraser{chat: chat, timeout: timeout}
}

func (r *QueryRephraser) Rephrase(ctx context.Context, history []domain.ConversationTurn, question string) (string, error) {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: contextualizeInstruction})
	for _, turn := range history {
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleHuman, Content: question})

	stageCtx, cancel := stageContext(ctx, r.timeout)
	defer cancel()

	out, err := r.chat.Complete(stageCtx, domain.ChatRequest{Messages: messages, Temperature: rephraseTemperature})
	if err != nil {
		return "", fmt.Errorf("rephrase question: %w", stageError(stageCtx, "rephrase question", err))
	}
	if strings.TrimSpace(out) == "" {
		return question, nil
	}
	return out, nil
}
