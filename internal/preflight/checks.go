package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"ferry/internal/remote"
)

// RemoteCheckName is the Result name produced by CheckRemote.
const RemoteCheckName = "Remote store"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least need
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, need uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < need {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}

// CheckRemote verifies that the remote store is reachable. Stores without a
// readiness probe pass as long as they exist. It uses a 10-second timeout and
// a single attempt.
func CheckRemote(ctx context.Context, dst remote.Store) Result {
	if dst == nil {
		return Result{Name: RemoteCheckName, Detail: "not configured"}
	}
	checker, ok := dst.(remote.ReadinessChecker)
	if !ok {
		return Result{Name: RemoteCheckName, Passed: true, Detail: dst.Name()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := checker.Ready(checkCtx); err != nil {
		return Result{Name: RemoteCheckName, Detail: fmt.Sprintf("%s (%s)", dst.Name(), summarizeRemoteError(err))}
	}
	return Result{Name: RemoteCheckName, Passed: true, Detail: fmt.Sprintf("%s (reachable)", dst.Name())}
}

// summarizeRemoteError produces a human-readable summary for readiness failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "readiness check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "readiness check timed out (store unreachable)"
	}
	return err.Error()
}
