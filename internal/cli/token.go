package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with stored platform access tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt an access token read from stdin into its stored form",
		Long: `Encrypt reads a plaintext access token from the first line of stdin and
prints the value to store in instagram_accounts.access_token_encrypted, encrypted with
ENCRYPTION_KEY.

Examples:
  echo "$TOKEN" | instabotctl token encrypt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenEncrypt(opts, cmd)
		},
	})

	return cmd
}

func runTokenEncrypt(opts *RootOptions, cmd *cobra.Command) error {
	backend, err := opts.backend()
	if err != nil {
		return err
	}
	box, err := backend.Tokens()
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("no token on stdin")
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return errors.New("no token on stdin")
	}

	stored, err := box.Encrypt(token)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"access_token": stored})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), stored)
	return err
}
