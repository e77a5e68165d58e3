// Package processor implements the dispatch engine's main loop (C4): it
// pulls the oldest Pending Job from the Queue Store, serializes execution
// behind the Device Lock, runs the resolved worker subprocess under a
// timeout, interprets the outcome, applies the retry policy, and always
// releases the device on the way out of a job's dispatch window.
//
// The Processor drives every status transition of a Job at runtime (§5).
// The Watcher only appends new Pending jobs through the Queue Store's Add,
// and the Notifier's UI-initiated retry goes through the Processor's
// RetryJob method rather than mutating the store directly.
package processor
