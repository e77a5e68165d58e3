// Package queue implements the dispatch engine's durable, day-partitioned
// job queue (C2).
//
// A queue is a single JSON file at QueueBaseDirectory/<yyyy-MM-dd>/queue.json
// holding the full list of Jobs for that day. The day is fixed at Store
// construction time (the engine's startup day) so a run that straddles
// midnight keeps reading and writing the same file throughout its lifetime.
//
// Every Save writes to a sibling temporary file, fsyncs it, and renames it
// over the target so readers never observe a partially-written queue. A
// Store additionally holds a process-internal mutex serializing access from
// goroutines in this engine, and takes a best-effort cross-process advisory
// lock (queue.lock) as a defensive second layer; the real single-writer
// guarantee comes from the Instance Guard (C6).
package queue
