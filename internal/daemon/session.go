package daemon

import (
	"context"
	"strings"

	"ferry/internal/logging"
	"ferry/internal/recovery"
)

// SignIn sets the session identity. A pass over pending items starts once
// the remote is also ready. It reports whether a pass started.
func (d *Daemon) SignIn(identity string) (bool, error) {
	life, err := d.lifetime()
	if err != nil {
		return false, err
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, nil
	}
	started := d.coordinator.SetIdentity(life, identity)
	d.logger.Info("session signed in", logging.String("identity", identity), logging.Bool("restore_started", started))
	return started, nil
}

// SignOut clears the session identity and wipes the durable queue. Uploads
// already running are not interrupted but will not be restored.
func (d *Daemon) SignOut(ctx context.Context) (int64, error) {
	life, err := d.lifetime()
	if err != nil {
		return 0, err
	}
	d.coordinator.SetIdentity(life, "")
	removed, err := d.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	d.logger.Info("session signed out", logging.Int64("cleared", removed))
	return removed, nil
}

// SetReady records remote readiness. It reports whether a restore pass started.
func (d *Daemon) SetReady(ready bool) (bool, error) {
	life, err := d.lifetime()
	if err != nil {
		return false, err
	}
	started := d.coordinator.SetReady(life, ready)
	d.logger.Debug("remote readiness changed", logging.Bool("ready", ready), logging.Bool("restore_started", started))
	return started, nil
}

// WaitRestore blocks until a running restore pass finishes and returns the
// latest result.
func (d *Daemon) WaitRestore(ctx context.Context) (recovery.Result, bool, error) {
	if err := d.coordinator.Wait(ctx); err != nil {
		return recovery.Result{}, false, err
	}
	result, ok := d.coordinator.LastResult()
	return result, ok, nil
}
