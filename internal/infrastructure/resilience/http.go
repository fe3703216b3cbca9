package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// HTTPStatusError is a non-2xx response from an upstream provider.
type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewHTTPStatusError reads up to 2KiB of the body for the error message.
func NewHTTPStatusError(provider, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// ClassifyHTTPError retries transport failures and 408/429/5xx responses.
// Caller cancellation is neither retried nor counted against the breaker.
func ClassifyHTTPError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapProviderError tags err as a provider failure, temporary when a retry
// could plausibly succeed. Deadline expiry keeps its context error so callers
// can report it as a timeout.
func WrapProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrProvider) || domain.IsKind(err, domain.ErrIndexNotFound) {
		return err
	}
	class := ClassifyHTTPError(err)
	return domain.WrapProviderError(operation, err, class.Retryable || IsCircuitOpen(err))
}
