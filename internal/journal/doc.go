// Package journal persists setup and clean run history in a SQLite
// database under the repository's .hdlenv directory.
//
// The journal is append-only bookkeeping: `hdlenv setup` and
// `hdlenv clean` record one run each, and `hdlenv status` reads the
// most recent run back. Because the journal is not required for the
// bootstrap itself to succeed, callers treat journal errors as warnings
// rather than failures — this package therefore returns plain wrapped
// errors, never exit-code-carrying CLIErrors.
//
// Storage uses modernc.org/sqlite, a pure-Go driver, so the CLI builds
// without cgo on every supported platform.
package journal
