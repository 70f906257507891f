package orchestration

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable reports that the completion call itself failed.
	ErrGatewayUnavailable = errors.New("completion gateway unavailable")
	// ErrUnparsableDecision reports model output that does not have the expected shape.
	ErrUnparsableDecision = errors.New("unparsable decision")
	// ErrInvalidRosterReference reports a selection naming someone outside the roster.
	ErrInvalidRosterReference = errors.New("participant not in roster")
	// ErrInvalidInput reports an empty question, an oversized question or an empty roster.
	ErrInvalidInput = errors.New("invalid orchestration input")
	// ErrCanceled reports that the caller canceled the run.
	ErrCanceled = errors.New("orchestration canceled")
)

// gatewayError classifies a failed gateway call. Cancellation wins over everything else so callers
// never mistake an abandoned request for an upstream outage.
func gatewayError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrCanceled, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrGatewayUnavailable, err)
}

func canceled(ctx context.Context, op string) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCanceled, ctx.Err())
}
