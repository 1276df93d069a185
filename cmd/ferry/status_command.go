package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/preflight"
	"ferry/internal/queue"
	"ferry/internal/remote"
)

type statusReport struct {
	ConfigBackend string             `json:"remote_backend"`
	StateDir      string             `json:"state_dir"`
	APIBind       string             `json:"api_bind"`
	InstanceHeld  bool               `json:"instance_running"`
	Queue         queue.Stats        `json:"queue"`
	QueueError    string             `json:"queue_error,omitempty"`
	Checks        []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue, instance, and environment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(report, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) (statusReport, error) {
	report := statusReport{
		ConfigBackend: cfg.Remote.Backend,
		StateDir:      cfg.Paths.StateDir,
		APIBind:       cfg.Paths.APIBind,
	}

	held, err := instanceRunning(cfg.LockPath())
	if err != nil {
		return report, err
	}
	report.InstanceHeld = held

	if store, err := queue.Open(cfg); err != nil {
		report.QueueError = err.Error()
	} else {
		stats, statsErr := store.Stats(ctx)
		if statsErr != nil {
			report.QueueError = statsErr.Error()
		}
		report.Queue = stats
		store.Close()
	}

	dst, err := remote.New(ctx, cfg, logging.NewNop())
	if err != nil {
		report.Checks = []preflight.Result{{Name: preflight.RemoteCheckName, Detail: err.Error()}}
		return report, nil
	}
	if closer, ok := dst.(remote.Closer); ok {
		defer closer.Close()
	}
	report.Checks = preflight.RunAll(ctx, cfg, dst)
	return report, nil
}

// instanceRunning probes the instance lock without holding it.
func instanceRunning(path string) (bool, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe instance lock: %w", err)
	}
	if !locked {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return false, fmt.Errorf("release instance lock: %w", err)
	}
	return false, nil
}

func renderStatus(report statusReport, colorize bool) string {
	p := &statusPrinter{colorize: colorize}

	p.section("Instance")
	if report.InstanceHeld {
		p.line("Instance", statusOK, "running")
	} else {
		p.line("Instance", statusWarn, "not running")
	}
	p.line("Remote backend", statusInfo, report.ConfigBackend)
	p.line("API bind", statusInfo, report.APIBind)

	p.section("Queue")
	if report.QueueError != "" {
		p.line("Queue", statusError, report.QueueError)
	} else {
		p.line("Pending", statusInfo, strconv.Itoa(report.Queue.Pending))
		p.line("Pending size", statusInfo, humanize.IBytes(uint64(max(report.Queue.PendingBytes, 0))))
		p.line("Completed", statusInfo, strconv.Itoa(report.Queue.Completed))
	}

	p.section("Checks")
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		p.line(check.Name, kind, check.Detail)
	}
	return p.String()
}
