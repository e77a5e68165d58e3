// Package devicelock implements the single, machine-wide advisory lock that
// serializes access to the shared hardware device the dispatch engine's
// worker subprocesses contend over.
//
// The lock is a file in the OS temp directory (overridable via
// FILEJOBROUTER_LOCK_DIR), held with github.com/gofrs/flock so that it is
// visible across processes and, on the platforms flock supports, across
// users. A JSON owner record is written into the locked file so a caller
// that fails to acquire the lock can report who holds it, and so a stale
// lock left behind by a crashed owner can be detected and reclaimed.
package devicelock
