// Package instanceguard implements the single-instance enforcement
// described in spec §4 (C6): a PID lock file under the log directory,
// acquired exclusively at startup and held for the process lifetime.
package instanceguard
