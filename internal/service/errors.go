package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/financetracker/finance-tracker-go/internal/domain"
)

// contextError translates an expired or cancelled ctx into the matching
// domain error. It returns nil while ctx is still live.
func contextError(ctx context.Context, operation string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: operation}
	default:
		return &domain.ErrCancelled{Operation: operation}
	}
}

// wrapStoreError annotates a store failure with the operation that hit it.
// When the caller's ctx is done the context error wins, so an abandoned
// request is reported as cancelled rather than as a store outage.
func wrapStoreError(ctx context.Context, operation string, err error) error {
	if cerr := contextError(ctx, operation); cerr != nil {
		return cerr
	}
	return fmt.Errorf("%s: %w", operation, err)
}
