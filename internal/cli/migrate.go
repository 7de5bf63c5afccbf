package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monuchauhan/InstaBot/core/db"
)

type migrateResult struct {
	Direction db.Direction `json:"direction"`
	Version   uint         `json:"version"`
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}

	for _, dir := range []db.Direction{db.Up, db.Down} {
		short := "Apply all pending migrations"
		if dir == db.Down {
			short = "Revert the most recent migration"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(opts, cmd, dir)
			},
		})
	}

	return cmd
}

func runMigrate(opts *RootOptions, cmd *cobra.Command, dir db.Direction) error {
	backend, err := opts.backend()
	if err != nil {
		return err
	}

	version, err := backend.Migrate(dir)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), migrateResult{Direction: dir, Version: version})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s, schema version %d\n", dir, version)
	return err
}
