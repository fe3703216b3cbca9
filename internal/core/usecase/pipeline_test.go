package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func TestRephraseSendsInstructionHistoryAndQuestion(t *testing.T) {
	chat := &chatModelFake{respond: func(context.Context, domain.ChatRequest) (string, error) {
		return "What is the price of a large latte?", nil
	}}
	history := []domain.ConversationTurn{
		{Role: domain.RoleHuman, Content: "do you have latte?"},
		{Role: domain.RoleAssistant, Content: "yes"},
	}

	out, err := NewQueryRephraser(chat, time.Second).Rephrase(context.Background(), history, "how much is the large one?")
	if err != nil {
		t.Fatalf("Rephrase() error = %v", err)
	}
	if out != "What is the price of a large latte?" {
		t.Fatalf("unexpected standalone question %q", out)
	}

	req := chat.lastRequest()
	if req.Temperature != 0.1 {
		t.Fatalf("expected temperature 0.1, got %v", req.Temperature)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != domain.RoleSystem || !strings.Contains(req.Messages[0].Content, "Do NOT answer the question") {
		t.Fatalf("expected contextualize instruction first, got %+v", req.Messages[0])
	}
	if req.Messages[1].Content != "do you have latte?" || req.Messages[2].Role != domain.RoleAssistant {
		t.Fatalf("expected history in order, got %+v", req.Messages[1:3])
	}
	if req.Messages[3].Role != domain.RoleHuman || req.Messages[3].Content != "how much is the large one?" {
		t.Fatalf("expected question last, got %+v", req.Messages[3])
	}
}

func TestRephraseBlankOutputFallsBackToQuestion(t *testing.T) {
	chat := &chatModelFake{respond: func(context.Context, domain.ChatRequest) (string, error) { return "  \n", nil }}

	out, err := NewQueryRephraser(chat, 0).Rephrase(context.Background(), nil, "latte?")
	if err != nil {
		t.Fatalf("Rephrase() error = %v", err)
	}
	if out != "latte?" {
		t.Fatalf("expected original question, got %q", out)
	}
}

func TestRephraseTimeoutIsReported(t *testing.T) {
	chat := &chatModelFake{respond: func(ctx context.Context, _ domain.ChatRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	_, err := NewQueryRephraser(chat, 10*time.Millisecond).Rephrase(context.Background(), nil, "latte?")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestGenerateFillsPromptWithJoinedContext(t *testing.T) {
	retriever := &retrieverFake{chunks: []domain.RetrievedChunk{
		{Chunk: menuChunk("menu_001", "first chunk"), Score: 0.9},
		{Chunk: menuChunk("menu_002", "second chunk"), Score: 0.5},
	}}
	chat := &chatModelFake{}
	gen := NewAnswerGenerator(retriever, chat, domain.StageTimeouts{})

	text, sources, err := gen.Generate(context.Background(), "price of latte")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "ok" || len(sources) != 2 {
		t.Fatalf("unexpected result %q / %d sources", text, len(sources))
	}
	if retriever.query != "price of latte" {
		t.Fatalf("expected retrieval with standalone question, got %q", retriever.query)
	}

	req := chat.lastRequest()
	if req.Temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != domain.RoleHuman {
		t.Fatalf("expected a single human message, got %+v", req.Messages)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "first chunk\n\nsecond chunk") {
		t.Fatalf("expected blank-line joined context in prompt")
	}
	if !strings.Contains(prompt, "**السؤال (Question):**\nprice of latte\n") {
		t.Fatalf("expected question in prompt")
	}
	if !strings.Contains(prompt, FallbackAnswer) {
		t.Fatalf("expected fallback phrase instruction in prompt")
	}
}

func TestBuildAnswerPromptDoesNotResubstitute(t *testing.T) {
	prompt := BuildAnswerPrompt("menu mentions {question}", "q")
	if !strings.Contains(prompt, "menu mentions {question}") {
		t.Fatalf("placeholder inside context must stay literal")
	}
}

func TestGenerateRetrieverFailure(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapProviderError("search", errors.New("503"), true)}
	chat := &chatModelFake{}

	_, _, err := NewAnswerGenerator(retriever, chat, domain.StageTimeouts{}).Generate(context.Background(), "q")
	if !errors.Is(err, domain.ErrProvider) || !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary provider error, got %v", err)
	}
	if len(chat.requests) != 0 {
		t.Fatalf("chat model must not be called after retrieval failure")
	}
}

func TestGenerateRetrieveTimeoutIsReported(t *testing.T) {
	chat := &chatModelFake{}
	gen := NewAnswerGenerator(blockingRetriever{}, chat, domain.StageTimeouts{Retrieve: 10 * time.Millisecond})

	_, _, err := gen.Generate(context.Background(), "q")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if len(chat.requests) != 0 {
		t.Fatalf("chat model must not be called after retrieval timeout")
	}
}

func TestRetrieveDeadlineAppliesToDirectSearch(t *testing.T) {
	_, err := WithRetrieveDeadline(blockingRetriever{}, 10*time.Millisecond).Retrieve(context.Background(), "latte")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRetrieveDeadlinePassesResultsThrough(t *testing.T) {
	inner := &retrieverFake{chunks: []domain.RetrievedChunk{{Chunk: menuChunk("menu_001", "latte")}}}
	bounded := WithRetrieveDeadline(inner, time.Second)

	chunks, err := bounded.Retrieve(context.Background(), "latte")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) != 1 || inner.query != "latte" {
		t.Fatalf("expected pass-through result, got %d chunks for %q", len(chunks), inner.query)
	}

	rewrapped := WithRetrieveDeadline(bounded, time.Millisecond)
	if rewrapped.next != inner {
		t.Fatalf("rewrapping must replace the deadline, not stack it")
	}
}

func TestGroundingCheck(t *testing.T) {
	sources := []domain.RetrievedChunk{{Chunk: menuChunk("menu_001", "[Menu Item]\nاسم الصنف: لاتيه (Latte)\n- Medium: 45 جنيه\n- Large: 55 جنيه")}}
	checker := NewGroundingChecker(0.5)

	score, grounded := checker.Check("- Medium: 45 جنيه\n- Large: 55 جنيه", sources)
	if !grounded || score != 1 {
		t.Fatalf("expected grounded answer with full overlap, got %v %v", score, grounded)
	}

	_, grounded = checker.Check("We also sell pizza and burgers downtown", sources)
	if grounded {
		t.Fatalf("expected unrelated answer to be flagged")
	}

	if _, grounded := checker.Check(FallbackAnswer, nil); !grounded {
		t.Fatalf("fallback phrase must count as grounded")
	}
}

func TestSplitWordsLowerHandlesArabicDiacritics(t *testing.T) {
	got := splitWordsLower("عفواً، Latte!")
	if strings.Join(got, "|") != "عفوا|latte" {
		t.Fatalf("unexpected tokens %v", got)
	}
}
