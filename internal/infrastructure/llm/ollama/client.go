package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, chatModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapProviderError("ollama embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Embeddings)), false)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ChatModel talks to /api/chat without streaming.
type ChatModel struct {
	client *Client
}

func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{Role: roleName(msg.Role), Content: msg.Content})
	}

	request := map[string]any{
		"model":    m.client.chatModel,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": req.Temperature,
		},
	}

	var response struct {
		Message chatMessage `json:"message"`
	}
	if err := m.client.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func roleName(role domain.Role) string {
	switch role {
	case domain.RoleSystem:
		return "system"
	case domain.RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}
