// Package resilience provides the retry and concurrency limits used around
// storage access.
//
// Retry re-runs an operation with exponential backoff while it fails with an
// error marked retryable, such as a transaction conflict:
//
//	err := resilience.RetryFunc(ctx, resilience.SubmitRetryConfig(3, 50*time.Millisecond),
//	    func(ctx context.Context) error {
//	        return driver.Insert(ctx, "users", records)
//	    })
//
// Bulkhead caps concurrent callers and refuses the overflow with a BUSY error:
//
//	bh := resilience.NewBulkhead(resilience.DefaultBulkheadConfig("queries"))
//	release, err := bh.Acquire(ctx)
package resilience
