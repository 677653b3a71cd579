// Create-admin command for the vento CLI.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/pkg/types"
)

var (
	flagAdminUsername string
	flagAdminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		u, err := account.New(b.Users(), b.Products(), logger).CreateAdmin(ctx, flagAdminUsername, flagAdminPassword)
		if errors.Is(err, types.ErrUsernameTaken) || errors.Is(err, types.ErrInvalidUsername) || errors.Is(err, types.ErrInvalidPassword) {
			return userError{err}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s created\n", u.Username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&flagAdminUsername, "username", account.DefaultAdminUsername, "administrator username")
	createAdminCmd.Flags().StringVar(&flagAdminPassword, "password", account.DefaultAdminPassword, "administrator password")
}
