package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/monuchauhan/InstaBot/internal/quota"
)

type quotaResult struct {
	AccountID int64  `json:"account_id"`
	Day       string `json:"day"`
	Count     int32  `json:"count"`
}

func NewQuotaCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect daily action quotas",
	}

	var day string
	show := &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show how many actions an account used on a UTC day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuotaShow(opts, cmd, args[0], day)
		},
	}
	show.Flags().StringVar(&day, "day", "", "UTC day as YYYY-MM-DD (default today)")

	cmd.AddCommand(show)
	return cmd
}

func runQuotaShow(opts *RootOptions, cmd *cobra.Command, rawAccount, rawDay string) error {
	accountID, err := strconv.ParseInt(rawAccount, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q", rawAccount)
	}

	day := quota.Day(time.Now())
	if rawDay != "" {
		day, err = time.Parse(time.DateOnly, rawDay)
		if err != nil {
			return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", rawDay)
		}
	}

	backend, err := opts.backend()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	quotas, err := backend.Quotas(ctx)
	if err != nil {
		return err
	}
	count, err := quotas.Count(ctx, accountID, day)
	if err != nil {
		return fmt.Errorf("reading quota: %w", err)
	}

	result := quotaResult{AccountID: accountID, Day: day.Format(time.DateOnly), Count: count}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "account %d used %d actions on %s\n", result.AccountID, result.Count, result.Day)
	return err
}
