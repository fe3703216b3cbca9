package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
)

const defaultTimeout = 30 * time.Second

// Client is a VectorStore over the Qdrant REST API.
type Client struct {
	baseURL    string
	apiKey     string
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

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var response struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	status, err := c.do(ctx, "list_collections", http.MethodGet, "/collections", nil, &response)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant list collections: unexpected status %d", status)
	}

	names := make([]string, 0, len(response.Result.Collections))
	for _, col := range response.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// CreateCollection treats 409 as success: another process created it first.
func (c *Client) CreateCollection(ctx context.Context, spec domain.IndexSpec) error {
	distance, err := distanceName(spec.Metric)
	if err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": distance,
		},
	}
	_, err = c.do(ctx, "create_collection", http.MethodPut, collectionPath(spec.Name), body, nil, http.StatusConflict)
	return err
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	status, err := c.do(ctx, "get_collection", http.MethodGet, collectionPath(name), nil, nil, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func distanceName(metric string) (string, error) {
	switch metric {
	case "", domain.MetricCosine:
		return "Cosine", nil
	case domain.MetricDotProduct:
		return "Dot", nil
	case domain.MetricEuclidean:
		return "Euclid", nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "qdrant distance", fmt.Errorf("unsupported metric %q", metric))
	}
}

// do sends one request through the executor. Statuses listed in allowed are
// returned to the caller instead of failing.
func (c *Client) do(
	ctx context.Context,
	operation, method, path string,
	payload any,
	out any,
	allowed ...int,
) (int, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	status := 0
	fn := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		for _, code := range allowed {
			if resp.StatusCode == code {
				return nil
			}
		}
		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode %s response: %w", operation, err)
			}
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+operation, fn, resilience.ClassifyHTTPError)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return status, resilience.WrapProviderError("qdrant "+operation, err)
	}
	return status, nil
}
