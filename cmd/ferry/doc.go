// Package main hosts the ferry CLI entrypoint and command graph.
//
// Most commands run the upload pipeline in-process for the duration of the
// invocation: they take the single-instance lock, restore or enqueue work,
// wait for it to settle, and release the lock on exit. The serve command
// keeps the pipeline alive and exposes it over the HTTP API instead.
package main
