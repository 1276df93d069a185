package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ferry/internal/daemon"
	"ferry/internal/daemonrun"
	"ferry/internal/extract"
	"ferry/internal/progress"
)

type uploadOutcome struct {
	daemon.Enqueued
	Error string `json:"error,omitempty"`
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var note string
	var link string
	var jsonOutput bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files, a note, or a link and wait for them to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(note) == "" && strings.TrimSpace(link) == "" {
				return errors.New("nothing to upload: pass files, --note, or --link")
			}
			handles := make([]extract.Handle, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				info, err := os.Stat(abs)
				if err != nil {
					return fmt.Errorf("stat %q: %w", arg, err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", arg)
				}
				handles = append(handles, extract.FileHandle{Path: abs})
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withRuntime(runCtx, "", func(rt *daemonrun.Runtime) error {
				d := rt.Daemon
				var accepted []daemon.Enqueued
				var enqueueErr error
				if len(handles) > 0 {
					_, items, err := d.EnqueueBatch(runCtx, handles, progress.KindFile)
					accepted = append(accepted, items...)
					enqueueErr = errors.Join(enqueueErr, err)
				}
				if text := strings.TrimSpace(note); text != "" {
					item, err := d.Enqueue(runCtx, extract.BytesHandle{
						DisplayName: "note.txt",
						Data:        []byte(text),
						MimeType:    "text/plain; charset=utf-8",
					}, daemon.EnqueueOptions{Kind: progress.KindNote})
					if err == nil {
						accepted = append(accepted, item)
					}
					enqueueErr = errors.Join(enqueueErr, err)
				}
				if url := strings.TrimSpace(link); url != "" {
					item, err := d.Enqueue(runCtx, extract.BytesHandle{
						DisplayName: "link.url",
						Data:        []byte(url),
						MimeType:    "text/uri-list",
					}, daemon.EnqueueOptions{Kind: progress.KindLink})
					if err == nil {
						accepted = append(accepted, item)
					}
					enqueueErr = errors.Join(enqueueErr, err)
				}

				showBar := !noProgress && !jsonOutput && isTerminal(cmd.ErrOrStderr())
				outcomes := waitUploads(runCtx, d, accepted, showBar, cmd.ErrOrStderr())

				failed := 0
				for _, outcome := range outcomes {
					if outcome.Error != "" {
						failed++
					}
				}
				if jsonOutput {
					if err := writeJSON(cmd, outcomes); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderUploadTable(outcomes))
				}
				if enqueueErr != nil {
					return fmt.Errorf("enqueue: %w", enqueueErr)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d uploads failed; durable items resume with `ferry resume`", failed, len(outcomes))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Upload a text note")
	cmd.Flags().StringVar(&link, "link", "", "Upload a link")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// waitUploads blocks until every accepted item settles, driving a progress
// bar from the registry when show is set.
func waitUploads(ctx context.Context, d *daemon.Daemon, accepted []daemon.Enqueued, show bool, out io.Writer) []uploadOutcome {
	var bar *progressbar.ProgressBar
	stopBar := func() {}
	if show && len(accepted) > 0 {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetDescription(fmt.Sprintf("Uploading %d item(s)", len(accepted))),
			progressbar.OptionClearOnFinish(),
		)
		updates, cancel := d.Watch(0)
		done := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			for {
				select {
				case <-done:
					return
				case _, ok := <-updates:
					if !ok {
						return
					}
					_ = bar.Set(int(d.Summary().OverallPercent))
				}
			}
		}()
		stopBar = func() {
			close(done)
			<-finished
			cancel()
			_ = bar.Finish()
		}
	}

	outcomes := make([]uploadOutcome, 0, len(accepted))
	for _, item := range accepted {
		outcome := uploadOutcome{Enqueued: item}
		if err := item.Wait(ctx); err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	stopBar()
	return outcomes
}

func renderUploadTable(outcomes []uploadOutcome) string {
	if len(outcomes) == 0 {
		return "No uploads accepted"
	}
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		result := "uploaded"
		if outcome.Error != "" {
			result = "failed: " + outcome.Error
		}
		rows = append(rows, []string{
			outcome.DisplayName,
			humanize.IBytes(uint64(max(outcome.SizeBytes, 0))),
			outcome.MimeType,
			yesNo(outcome.Durable),
			result,
		})
	}
	return tableSpec{
		headers: []string{"Name", "Size", "Type", "Durable", "Result"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	}.render()
}
