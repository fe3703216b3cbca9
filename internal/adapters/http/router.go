package httpadapter

import (
	"encoding/json"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
	"github.com/kirillkom/cafe-support-assistant/internal/observability/metrics"
)

const (
	serviceName       = "api"
	sessionCookieName = "cafe_session"
	sessionMaxAge     = 86400
	maxQueryBodyBytes = 16 << 10
)

var indexPage = template.Must(template.ParseFS(webFS, "web/index.html"))

type Router struct {
	assistant ports.Assistant
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator

	cookieSecure   bool
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

func NewRouter(cfg config.Config, assistant ports.Assistant, m *metrics.HTTPServerMetrics) *Router {
	if m == nil {
		m = metrics.NewHTTPServerMetrics(serviceName)
	}
	validator, err := newRequestValidator()
	if err != nil {
		panic(err)
	}
	return &Router{
		assistant:      assistant,
		metrics:        m,
		validator:      validator,
		cookieSecure:   cfg.SessionCookieSecure,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		queueWait:      time.Duration(cfg.APIQueueWaitMS) * time.Millisecond,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.index)
	mux.HandleFunc("POST /query", rt.query)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("GET /openapi.yaml", rt.validator.serveDocument)

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// index renders the chat page and clears the caller's conversation.
func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	sessionID, existing := rt.session(w, r)
	if existing {
		if err := rt.assistant.Reset(r.Context(), sessionID); err != nil {
			slog.Error("session_reset_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
			writeDomainError(w, err)
			return
		}
		rt.metrics.RecordSessionReset(serviceName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, map[string]string{
		"Title":       "مساعد المقهى",
		"Placeholder": "اسأل عن المنيو أو الفروع...",
		"Submit":      "إرسال",
	}); err != nil {
		slog.Error("template_render_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Message string `json:"message"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "question is required")
		return
	}

	sessionID, _ := rt.session(w, r)
	start := time.Now()
	answer, err := rt.assistant.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		if r.Context().Err() != nil {
			slog.Info("query_canceled", "request_id", requestIDFromContext(r.Context()), "session_id", sessionID)
			return
		}
		status, kind := writeDomainError(w, err)
		rt.metrics.RecordRAGFailure(serviceName, "query", kind)
		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"status", status,
			"kind", kind,
			"error", err,
		}
		if status >= 500 {
			slog.Error("query_failed", logAttrs...)
		} else {
			slog.Warn("query_failed", logAttrs...)
		}
		return
	}

	rt.metrics.RecordRAGObservation(serviceName, "query", len(answer.Sources), time.Since(start))
	rt.metrics.RecordGrounding(serviceName, "query", answer.GroundingScore, answer.Grounded)
	writeJSON(w, http.StatusOK, queryResponse{Message: answer.Text})
}

// session returns the caller's session id, minting one and setting the cookie
// when the request carries none.
func (rt *Router) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			return cookie.Value, true
		}
	}

	sessionID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   rt.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
