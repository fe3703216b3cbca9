package httpadapter

import (
	"net/http"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// mapErrorKind names the error in the response body.
func mapErrorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrTimeout):
		return "timeout"
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return "index_not_found"
	case domain.IsKind(err, domain.ErrMissingField):
		return "missing_field"
	case domain.IsKind(err, domain.ErrConfiguration):
		return "configuration"
	case domain.IsKind(err, domain.ErrProvider):
		return "provider"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

// errorDetail keeps upstream bodies and internals out of responses; only
// caller mistakes are echoed back.
func errorDetail(kind string, err error) string {
	switch kind {
	case "invalid_input":
		return err.Error()
	case "timeout":
		return "the assistant took too long to answer, please try again"
	case "index_not_found":
		return "the knowledge index is not available"
	case "provider", "temporary":
		return "an upstream model or index request failed"
	default:
		return "internal error"
	}
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, errorBody{Error: errorPayload{Kind: kind, Detail: detail}})
}

func writeDomainError(w http.ResponseWriter, err error) (int, string) {
	status := mapErrorToHTTPStatus(err)
	kind := mapErrorKind(err)
	writeError(w, status, kind, errorDetail(kind, err))
	return status, kind
}
