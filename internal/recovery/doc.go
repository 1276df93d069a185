// Package recovery resumes durable queue items once per session.
//
// A Coordinator watches two signals: the signed-in identity and remote
// readiness. When both are present and no restore has been attempted for the
// current session, it lists pending items in FIFO order, registers each with
// the progress registry at its stored percentage, and submits them through
// the upload runner. Outcomes are awaited independently and summarised in a
// Result.
package recovery
