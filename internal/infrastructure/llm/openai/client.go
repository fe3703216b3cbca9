package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

const defaultTimeout = 30 * time.Second

// Client speaks the OpenAI REST dialect used by most hosted providers.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
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

func New(baseURL, apiKey, model string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatModel struct {
	client *Client
}

func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

func (m *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	messages := make([]message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, message{Role: roleName(msg.Role), Content: msg.Content})
	}

	request := map[string]any{
		"model":       m.client.model,
		"messages":    messages,
		"temperature": req.Temperature,
	}

	var response struct {
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
	}
	if err := m.client.postJSON(ctx, "/chat/completions", request, &response, "chat"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", domain.WrapProviderError("openai chat", fmt.Errorf("response has no choices"), false)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
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
		"model": e.client.model,
		"input": texts,
	}

	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.client.postJSON(ctx, "/embeddings", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, domain.WrapProviderError("openai embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Data)), false)
	}

	sort.SliceStable(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})
	out := make([][]float32, 0, len(response.Data))
	for _, item := range response.Data {
		out = append(out, item.Embedding)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
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
