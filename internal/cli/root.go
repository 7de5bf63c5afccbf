package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/monuchauhan/InstaBot/common/secret"
	"github.com/monuchauhan/InstaBot/core/db"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/store"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Backend opens the resources commands operate on. Implementations connect
// lazily so --help never touches the network.
type Backend interface {
	Migrate(dir db.Direction) (uint, error)
	DLQ(ctx context.Context) (*queue.DLQ, error)
	Attempts(ctx context.Context) (store.ActionAttemptStore, error)
	Quotas(ctx context.Context) (store.QuotaStore, error)
	Tokens() (*secret.Box, error)
	Close()
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	Backend Backend
}

func NewRootCommand(backend Backend) *cobra.Command {
	opts := &RootOptions{Backend: backend}

	cmd := &cobra.Command{
		Use:   "instabotctl",
		Short: "Operate the instabot pipeline",
		Long:  "Operator tooling for instabot: schema migrations, dead letter replay, quota and action log lookups, token encryption.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDLQCommand(opts))
	cmd.AddCommand(NewQuotaCommand(opts))
	cmd.AddCommand(NewAttemptsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errMissingBackend = errors.New("no backend configured")

func (o *RootOptions) backend() (Backend, error) {
	if o.Backend == nil {
		return nil, errMissingBackend
	}
	return o.Backend, nil
}
