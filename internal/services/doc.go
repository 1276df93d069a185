// Package services defines shared error markers and context helpers consumed
// by the upload pipeline.
//
// Context helpers stamp item, batch, session, and correlation identifiers so
// logging.WithContext can tag log lines. Error markers plus Wrap let callers
// classify failures (EventType, Hint) without string matching.
package services
