// Package remote defines the object store the upload runner writes to and
// ships adapters for Amazon S3 (and S3-compatible stores), Google Cloud
// Storage, a local directory, and an in-memory fake for tests.
//
// Adapters only see an io.Reader. Progress is observed by wrapping that
// reader, never through adapter-specific callbacks.
package remote
