package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"deadline", context.DeadlineExceeded, true, true},
		{"503", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, true, true},
		{"429", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"401", &HTTPStatusError{StatusCode: http.StatusUnauthorized}, false, false},
		{"other", errors.New("decode"), false, true},
	}
	for _, tc := range cases {
		got := ClassifyHTTPError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestWrapProviderErrorMarksTemporary(t *testing.T) {
	err := WrapProviderError("search", &HTTPStatusError{Provider: "qdrant", Operation: "search", StatusCode: 502, Status: "502 Bad Gateway"})
	if !errors.Is(err, domain.ErrProvider) || !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary provider error, got %v", err)
	}

	err = WrapProviderError("search", &HTTPStatusError{Provider: "qdrant", Operation: "search", StatusCode: 400, Status: "400 Bad Request"})
	if !errors.Is(err, domain.ErrProvider) || errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent provider error, got %v", err)
	}

	notFound := &domain.IndexNotFoundError{Name: "x"}
	if got := WrapProviderError("search", notFound); got != notFound {
		t.Fatalf("index not found must pass through, got %v", got)
	}
}
