// Package watcher implements the dispatch engine's filesystem watcher (C3).
//
// The Watcher polls the configured watch directory on a fixed interval,
// classifies newly observed files by their first path component against the
// worker mapping, debounces each candidate until its length has stabilised
// across two samples, and enqueues a Pending Job to the Queue Store. It
// never reads from the queue to decide what to scan - only to suppress a
// duplicate enqueue of a file that already has an active Job - so a crash
// and restart simply re-bootstraps from the filesystem.
package watcher
