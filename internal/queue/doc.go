// Package queue persists pending uploads in SQLite so they survive a crash or
// restart.
//
// An item lives in the store exactly until the remote store confirms it. The
// Store keeps the payload bytes alongside metadata, records best-effort
// progress, and returns pending work in FIFO order for session recovery.
// Payloads above the configured ceiling are refused with ErrPayloadTooLarge;
// callers upload those in memory only.
//
// Schema changes bump schemaVersion in schema.go; users clear the database to
// adopt the new schema.
package queue
