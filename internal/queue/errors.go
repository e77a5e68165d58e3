package queue

import "errors"

// ErrNotFound is returned by Update when no Job with the given ID exists in
// the current day's queue.
var ErrNotFound = errors.New("queue: job not found")

// ErrDuplicateActive is returned by Add when a Job with the same
// InputPath already has an active (Pending or Processing) entry.
var ErrDuplicateActive = errors.New("queue: active job already exists for input path")
