// Package daemon assembles the upload pipeline and exposes it to the UI layer.
//
// A Daemon owns one limiter shared by fresh uploads and session recovery, the
// progress registry, the upload runner, the recovery coordinator, and the
// byte extractor. Start acquires a lock file in the state directory so only
// one process drives a given queue database.
package daemon
