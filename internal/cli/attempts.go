package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/monuchauhan/InstaBot/internal/model"
)

func NewAttemptsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Query the action log",
	}

	var eventID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List every action attempt recorded for an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttemptsList(opts, cmd, eventID)
		},
	}
	list.Flags().StringVar(&eventID, "event", "", "platform event id (required)")
	_ = list.MarkFlagRequired("event")

	cmd.AddCommand(list)
	return cmd
}

func runAttemptsList(opts *RootOptions, cmd *cobra.Command, eventID string) error {
	backend, err := opts.backend()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	attempts, err := backend.Attempts(ctx)
	if err != nil {
		return err
	}
	rows, err := attempts.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("listing attempts: %w", err)
	}
	if rows == nil {
		rows = []model.ActionAttempt{}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), rows)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRULE\tKIND\tSTATUS\tTARGET\tTRIES\tDETAIL")
	for _, a := range rows {
		detail := ""
		if a.Detail != nil {
			detail = *a.Detail
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			a.ID, a.RuleID, a.RuleKind, a.Status, a.TargetID, a.Tries, detail)
	}
	return tw.Flush()
}
