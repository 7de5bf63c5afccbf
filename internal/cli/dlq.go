package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type deadLetterRow struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventKind string    `json:"event_kind"`
	AccountID string    `json:"account_id"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

type dlqListResult struct {
	Total   int64           `json:"total"`
	Letters []deadLetterRow `json:"letters"`
}

type dlqReplayResult struct {
	DeadLetterID string `json:"dead_letter_id"`
	StreamID     string `json:"stream_id"`
}

func NewDLQCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered events",
	}

	var limit int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDLQList(opts, cmd, limit)
		},
	}
	list.Flags().Int64Var(&limit, "limit", 50, "maximum number of dead letters to show")

	replay := &cobra.Command{
		Use:   "replay <id>...",
		Short: "Put dead letters back on the event stream as first attempts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDLQReplay(opts, cmd, args)
		},
	}

	cmd.AddCommand(list, replay)
	return cmd
}

func runDLQList(opts *RootOptions, cmd *cobra.Command, limit int64) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	backend, err := opts.backend()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	dlq, err := backend.DLQ(ctx)
	if err != nil {
		return err
	}
	total, err := dlq.Len(ctx)
	if err != nil {
		return fmt.Errorf("counting dead letters: %w", err)
	}
	letters, err := dlq.List(ctx, limit)
	if err != nil {
		return err
	}

	result := dlqListResult{Total: total, Letters: make([]deadLetterRow, 0, len(letters))}
	for _, l := range letters {
		result.Letters = append(result.Letters, deadLetterRow{
			ID:        l.ID,
			EventID:   l.Task.Event.ID,
			EventKind: string(l.Task.Event.Kind),
			AccountID: l.Task.Event.AccountID,
			Attempt:   l.Task.Attempt,
			Error:     l.Error,
			FailedAt:  l.FailedAt,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEVENT\tKIND\tACCOUNT\tATTEMPT\tFAILED AT\tERROR")
	for _, r := range result.Letters {
		failedAt := "-"
		if !r.FailedAt.IsZero() {
			failedAt = r.FailedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.EventID, r.EventKind, r.AccountID, r.Attempt, failedAt, r.Error)
	}
	fmt.Fprintf(tw, "\n%d of %d dead letters shown\n", len(result.Letters), total)
	return tw.Flush()
}

func runDLQReplay(opts *RootOptions, cmd *cobra.Command, ids []string) error {
	backend, err := opts.backend()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	dlq, err := backend.DLQ(ctx)
	if err != nil {
		return err
	}

	results := make([]dlqReplayResult, 0, len(ids))
	for _, id := range ids {
		streamID, err := dlq.Replay(ctx, id)
		if err != nil {
			return fmt.Errorf("replaying %s: %w", id, err)
		}
		results = append(results, dlqReplayResult{DeadLetterID: id, StreamID: streamID})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %s as %s\n", r.DeadLetterID, r.StreamID)
	}
	return nil
}
