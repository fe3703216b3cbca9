package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// DefaultSubject carries index rebuild requests.
const DefaultSubject = "cafe.index.rebuild"

const flushTimeout = 5 * time.Second

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("cafe-support-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReindex(ctx context.Context, req domain.ReindexRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "encode reindex request", err)
	}

	// Flush waits for the server to acknowledge the publish so the CLI only
	// reports "queued" once the request reached the broker.
	call := func(ctx context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		if err := q.conn.FlushWithContext(flushCtx); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return asTemporary("publish reindex request", err)
}

func (q *Queue) SubscribeReindex(ctx context.Context, handler func(context.Context, domain.ReindexRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "indexers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := DecodeReindexRequest(msg.Data)
		if err != nil {
			q.logger.Error("reindex_request_invalid", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req); err != nil {
			q.logger.Error("reindex_handler_failed", "path", req.Path, "index", req.IndexName, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func DecodeReindexRequest(data []byte) (domain.ReindexRequest, error) {
	var req domain.ReindexRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ReindexRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode reindex request", err)
	}
	if req.Path == "" || req.IndexName == "" {
		return domain.ReindexRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode reindex request", fmt.Errorf("path and index_name are required"))
	}
	return req, nil
}
