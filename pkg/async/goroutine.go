package async

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gemeos/tenant-auth/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The returned channel is closed once fn has returned (or panicked).
// Callers that fire and forget may ignore it.
//
// Example:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "audit write", func(ctx context.Context) error {
//	    return gw.CreateAuditLog(ctx, entry)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	go func() {
		defer close(done)

		ctx := parentCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
			defer cancel()
		}

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
		}
	}()

	return done
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context)) <-chan struct{} {
	return SafeGo(parentCtx, logger, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Map runs fn over items with at most workers concurrent calls and returns
// the results in input order. Each call gets its own timeout when timeout > 0.
// A panic in fn is converted into that item's error. Map never stops early:
// every item is attempted and every error is reported in errs.
//
// Example:
//
//	allowed, errs := async.Map(ctx, refs, 4, time.Second, func(ctx context.Context, ref auth.PermissionRef) (bool, error) {
//	    return gw.UserHasPermission(ctx, userID, tenantID, ref.Resource, ref.Action)
//	})
func Map[T, R any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) (R, error)) ([]R, []error) {

	results := make([]R, len(items))
	errs := make([]error, len(items))

	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			taskCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()

			results[i], errs[i] = fn(taskCtx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}
