package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/daemonrun"
	"ferry/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable upload queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	return queueCmd
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.ListPending(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, pendingJSON(items))
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderQueueTable(items))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type pendingItem struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	ProgressPercent float64   `json:"progress_percent"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}

func pendingJSON(items []*queue.Item) []pendingItem {
	out := make([]pendingItem, 0, len(items))
	for _, item := range items {
		out = append(out, pendingItem{
			ID:              item.ID,
			DisplayName:     item.DisplayName,
			MimeType:        item.MimeType,
			SizeBytes:       item.SizeBytes,
			ProgressPercent: item.ProgressPercent,
			EnqueuedAt:      item.EnqueuedAt,
		})
	}
	return out
}

func renderQueueTable(items []*queue.Item) string {
	rows := make([][]string, 0, len(items))
	var total int64
	for _, item := range items {
		total += max(item.SizeBytes, 0)
		rows = append(rows, []string{
			item.ID,
			item.DisplayName,
			humanize.IBytes(uint64(max(item.SizeBytes, 0))),
			strconv.FormatFloat(item.ProgressPercent, 'f', 1, 64) + "%",
			humanize.Time(item.EnqueuedAt),
		})
	}
	return tableSpec{
		headers: []string{"ID", "Name", "Size", "Progress", "Enqueued"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		footer:  []string{"", strconv.Itoa(len(items)) + " pending", humanize.IBytes(uint64(total))},
	}.render()
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every pending upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fails while another instance holds the lock.
			return ctx.withRuntime(cmd.Context(), "", func(rt *daemonrun.Runtime) error {
				removed, err := rt.Daemon.ClearQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending upload(s)\n", removed)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, health)
				}
				rows := [][]string{
					{"Database", health.DBPath},
					{"Exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.Readable)},
					{"Schema", strconv.Itoa(health.SchemaVersion)},
					{"Items", strconv.Itoa(health.TotalItems)},
					{"Integrity", yesNo(health.IntegrityCheck)},
				}
				if health.Error != "" {
					rows = append(rows, []string{"Error", health.Error})
				}
				fmt.Fprintln(cmd.OutOrStdout(), tableSpec{headers: []string{"Check", "Value"}, rows: rows}.render())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
