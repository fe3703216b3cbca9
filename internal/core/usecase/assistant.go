package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// AssistantUseCase runs rephrase -> retrieve -> generate for one session at a
// time. History is only updated after a successful answer.
type AssistantUseCase struct {
	sessions  ports.SessionStore
	rephraser *QueryRephraser
	generator *AnswerGenerator
	grounding *GroundingChecker
	locks     *sessionLocks
	logger    *slog.Logger
}

func NewAssistantUseCase(
	sessions ports.SessionStore,
	rephraser *QueryRephraser,
	generator *AnswerGenerator,
	grounding *GroundingChecker,
	logger *slog.Logger,
) *AssistantUseCase {
	if grounding == nil {
		grounding = NewGroundingChecker(DefaultGroundingMinOverlap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantUseCase{
		sessions:  sessions,
		rephraser: rephraser,
		generator: generator,
		grounding: grounding,
		locks:     newSessionLocks(),
		logger:    logger,
	}
}

func (uc *AssistantUseCase) Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("session id is required"))
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	unlock, err := uc.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTimeout, "wait for session", err)
	}
	defer unlock()

	history, err := uc.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	standalone, err := uc.rephraser.Rephrase(ctx, history, question)
	if err != nil {
		return nil, err
	}

	text, sources, err := uc.generator.Generate(ctx, standalone)
	if err != nil {
		return nil, err
	}

	score, grounded := uc.grounding.Check(text, sources)
	if !grounded {
		uc.logger.Warn("answer has low overlap with retrieved context",
			"session_id", sessionID,
			"overlap", score,
			"sources", len(sources),
		)
	}

	if err := uc.sessions.AppendExchange(ctx, sessionID, question, text); err != nil {
		return nil, fmt.Errorf("update session history: %w", err)
	}

	return &domain.Answer{
		Text:               text,
		StandaloneQuestion: standalone,
		Sources:            sources,
		Grounded:           grounded,
		GroundingScore:     score,
	}, nil
}

func (uc *AssistantUseCase) Reset(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "reset session", errors.New("session id is required"))
	}
	unlock, err := uc.locks.acquire(ctx, sessionID)
	if err != nil {
		return domain.WrapError(domain.ErrTimeout, "wait for session", err)
	}
	defer unlock()

	if err := uc.sessions.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}
