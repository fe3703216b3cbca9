package usecase

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// stageError reports deadline expiry as ErrTimeout and leaves other failures
// to the caller's wrapping.
func stageError(stageCtx context.Context, stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTimeout) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(stageCtx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.WrapError(domain.ErrTimeout, stage, err)
	}
	return err
}
