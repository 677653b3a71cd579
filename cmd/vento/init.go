// Init command for the vento CLI.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/pkg/types"
)

var flagSkipAdmin bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and storage",
	Long: `Init writes a default config.yaml when none exists, attaches the
configured backend (creating data files, schema and indexes) and creates the
default administrator account when the store has no administrator yet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "VENTO initialized successfully")
		fmt.Fprintln(out, "  config: ", cfg.configDir)
		fmt.Fprintln(out, "  backend:", b.Name())
		if cfg.store.Backend == types.BackendTextFile || cfg.store.Backend == types.BackendSQLite {
			fmt.Fprintln(out, "  data:   ", cfg.store.DataDir)
		}
		if flagSkipAdmin {
			return nil
		}

		users, err := b.Users().List(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.IsAdmin {
				return nil
			}
		}
		u, err := account.New(b.Users(), b.Products(), logger).CreateAdmin(ctx, "", "")
		if errors.Is(err, types.ErrUsernameTaken) {
			fmt.Fprintf(out, "  admin:   %s exists but is not an administrator\n", account.DefaultAdminUsername)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  admin:   created %s with the default password; change it\n", u.Username)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagSkipAdmin, "no-admin", false, "do not create the default administrator")
}
