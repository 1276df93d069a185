// Package upload drives queue items to the remote store.
//
// Each item runs inside a limiter slot. The payload is handed to the remote
// store through a counting reader whose offsets feed the progress registry on
// every read and the durable queue at a throttled rate. A confirmed upload is
// marked completed and removed from the queue; a failed one is dropped from
// the registry but stays queued for the next session. Nothing is retried
// within a session.
package upload
