// Package engine wires the Device Lock (C1), Queue Store (C2), Watcher
// (C3), Processor (C4), Notifier (C5), and Instance Guard (C6) into the
// single process-context value described in spec §9's design notes: one
// struct built once at startup, holding configuration, the six live
// components, and a cancellation token, with every operation taking it
// explicitly rather than relying on package-level state.
package engine
