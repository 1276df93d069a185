// Package preflight provides readiness checks for the filesystem paths and
// the remote store that ferry depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and only marks the remote ready when
//     the remote check passes, which in turn gates session recovery.
//   - The CLI "ferry status" command renders the same results as a table.
package preflight
