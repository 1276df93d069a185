package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/daemonrun"
	"ferry/internal/preflight"
	"ferry/internal/recovery"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var identity string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Sign in and finish uploads left pending by an earlier run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			who := sessionIdentity(identity, cfg)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withRuntime(runCtx, who, func(rt *daemonrun.Runtime) error {
				if !rt.Ready() {
					detail := "remote check missing"
					if check, ok := preflight.Find(rt.Preflight, preflight.RemoteCheckName); ok {
						detail = check.Detail
					}
					return fmt.Errorf("remote store not ready: %s", detail)
				}
				result, ok, err := rt.Daemon.WaitRestore(runCtx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no restore pass ran")
				}
				if jsonOutput {
					if err := writeJSON(cmd, result); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderRestoreResult(result))
				}
				if result.Error != "" {
					return errors.New(result.Error)
				}
				if result.Failed > 0 {
					return fmt.Errorf("%d of %d pending uploads failed; they remain queued", result.Failed, result.Pending)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "Session identity (defaults to session.identity or the OS user)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the restore result as JSON")
	return cmd
}

func renderRestoreResult(result recovery.Result) string {
	duration := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
	rows := [][]string{
		{"Identity", result.Identity},
		{"Session", result.SessionID},
		{"Pending", strconv.Itoa(result.Pending)},
		{"Submitted", strconv.Itoa(result.Submitted)},
		{"Succeeded", strconv.Itoa(result.Succeeded)},
		{"Failed", strconv.Itoa(result.Failed)},
		{"Canceled", strconv.Itoa(result.Canceled)},
		{"Skipped", strconv.Itoa(result.Skipped)},
		{"Duration", duration.String()},
	}
	return tableSpec{
		headers: []string{"Field", "Value"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
	}.render()
}
