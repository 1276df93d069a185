package preflight

import (
	"context"

	"ferry/internal/config"
	"ferry/internal/remote"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// minFreeBytesFloor is the least free space the state directory must keep for the queue.
const minFreeBytesFloor = 64 * 1024 * 1024

// RunAll executes every check applicable to cfg. dst may be nil when the
// remote store could not be constructed.
func RunAll(ctx context.Context, cfg *config.Config, dst remote.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Queue free space", cfg.Paths.StateDir, MinFreeBytes(cfg)),
	}
	if cfg.Remote.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Remote directory", cfg.Remote.LocalDir))
	}
	results = append(results, CheckRemote(ctx, dst))
	return results
}

// MinFreeBytes returns the free space required in the state directory: room
// for two maximum-size payloads, with a fixed floor.
func MinFreeBytes(cfg *config.Config) uint64 {
	need := uint64(cfg.MaxPersistBytes()) * 2
	if need < minFreeBytesFloor {
		need = minFreeBytesFloor
	}
	return need
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Find returns the result named name.
func Find(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}
