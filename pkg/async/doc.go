// Package async provides safe concurrent execution primitives for background tasks.
//
// # Key Functions
//
// SafeGo: Execute a function in a goroutine with panic recovery, a timeout,
// and error logging.
//
//	async.SafeGo(ctx, logger, 5*time.Second, "audit write", func(ctx context.Context) error {
//		return recordAudit(ctx)
//	})
//
// Map: Bounded fan-out that keeps results in input order.
//
//	results, errs := async.Map(ctx, refs, 4, time.Second, check)
//
// # Use Cases
//
// Fire-and-forget audit writes and bulk permission checks.
package async
