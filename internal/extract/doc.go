// Package extract turns file handles into owned byte buffers on a dedicated
// worker goroutine.
//
// Callers send a request carrying its own reply channel and receive a Result
// holding the payload, sniffed MIME type, size, and item ID, or an Err. The
// worker keeps no reference to a payload after handing it off.
package extract
