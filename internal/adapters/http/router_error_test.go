package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func TestQueryMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required")), http.StatusBadRequest, "invalid_input"},
		{"timeout", domain.WrapError(domain.ErrTimeout, "generate", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"index not found", &domain.IndexNotFoundError{Name: "cafe"}, http.StatusServiceUnavailable, "index_not_found"},
		{"temporary provider", domain.WrapProviderError("chat", errors.New("502 bad gateway"), true), http.StatusServiceUnavailable, "provider"},
		{"provider", domain.WrapProviderError("chat", errors.New("400 bad model"), false), http.StatusBadGateway, "provider"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, &assistantFake{askErr: tc.err}, nil).Handler()
			res := postQuery(handler, `{"question":"price of latte"}`, nil)

			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			if kind := decodeErrorKind(t, res.Body.Bytes()); kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, kind)
			}
		})
	}
}

func TestQueryDoesNotLeakUpstreamBodies(t *testing.T) {
	err := domain.WrapProviderError("chat", errors.New("secret upstream payload"), false)
	handler := NewRouter(config.Config{}, &assistantFake{askErr: err}, nil).Handler()

	res := postQuery(handler, `{"question":"hi"}`, nil)
	if strings.Contains(res.Body.String(), "secret upstream payload") {
		t.Fatalf("upstream error leaked into response: %s", res.Body.String())
	}
}

func TestQueryRejectsSchemaViolations(t *testing.T) {
	fake := &assistantFake{}
	handler := NewRouter(config.Config{}, fake, nil).Handler()

	for _, body := range []string{`{}`, `{"question": 5}`, `not json`, `{"question":"   "}`} {
		res := postQuery(handler, body, nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
		if kind := decodeErrorKind(t, res.Body.Bytes()); kind != "invalid_input" {
			t.Fatalf("body %s: expected invalid_input, got %q", body, kind)
		}
	}
	if fake.asks != 0 {
		t.Fatalf("invalid requests must not reach the assistant, got %d calls", fake.asks)
	}
}
