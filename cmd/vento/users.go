// Users commands list and delete accounts.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/pkg/types"
)

var flagJSON bool

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with their product counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		users, err := account.New(b.Users(), b.Products(), logger).ListUsers(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if flagJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(users)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tROLE\tCREATED\tPRODUCTS")
		for _, u := range users {
			role := "user"
			if u.IsAdmin {
				role = "admin"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", u.Username, role, u.CreatedAt, u.ProductCount)
		}
		return tw.Flush()
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account and all of its products",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		err = account.New(b.Users(), b.Products(), logger).DeleteUser(ctx, "", args[0])
		if errors.Is(err, types.ErrUserNotFound) || errors.Is(err, account.ErrMissingFields) {
			return userError{fmt.Errorf("%w: %q", err, args[0])}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
		return nil
	},
}

func init() {
	usersListCmd.Flags().BoolVar(&flagJSON, "json", false, "output as JSON")
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
}
