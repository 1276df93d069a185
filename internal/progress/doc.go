// Package progress keeps the in-memory view of uploads the UI shows.
//
// Progress reports are buffered per item and applied once per tick, so the
// number of state transitions is bounded no matter how often a transfer
// reports. Completed entries stay visible at 100% for a grace period before
// they are dropped; failed or dismissed entries are dropped at once.
// Nothing here is persisted.
package progress
