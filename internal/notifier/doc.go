// Package notifier implements the bi-directional push channel to the UI
// described in spec §4.5 (C5): outbound state events and periodic
// heartbeats, and inbound retry commands relayed back to the Processor.
//
// No websocket-like client library appears anywhere in the example corpus,
// so the transport is built on net/http: outbound events are POSTed
// individually and inbound commands are drained with a short-interval GET
// poll, both against a ranked list of candidate endpoints with the
// [0s, 2s, 10s, 30s] reconnect backoff from §4.5. A disconnected or failing
// endpoint never blocks a caller: Send* methods only ever enqueue onto a
// bounded channel drained by a background goroutine.
package notifier
