// Package work implements the background work processor.
//
// # Work Types
//
// Every background job is a registered WorkType with a stable ID:
//
//   - cycle:run: one ingestion and recommendation cycle
//   - portfolio:refresh: price refresh without ingestion
//   - maintenance:backup: ledger and portfolio snapshot, optional upload
//   - maintenance:cache-cleanup: expired quote removal
//
// # Execution Model
//
// The processor runs one item at a time. Each work type has at most one pending slot:
// enqueueing a type that is already pending is a no-op, so a burst of triggers collapses
// into a single run that starts after the current one finishes. Pending items run in
// priority order.
//
// ExecuteNow runs a type synchronously on the caller's goroutine and fails with
// ErrProcessorBusy instead of waiting when something else is executing.
//
// # Retries
//
// A failed item is re-enqueued after RetryDelay until it has been retried MaxRetries
// times. cycle:run has MaxRetries 0: a partially completed cycle has already persisted
// trades and dispatched notifications, and the next scheduled cycle picks up whatever
// was skipped.
package work
