// Diagnose command checks the configuration and backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errDiagnoseFailed = errors.New("diagnostics found problems")

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check configuration and backend connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := false
		report := func(ok bool, name, detail string) {
			mark := "ok  "
			if !ok {
				mark = "FAIL"
				failed = true
			}
			fmt.Fprintf(out, "[%s] %-16s %s\n", mark, name, detail)
		}

		report(true, "config dir", cfg.configDir)

		am, err := newAuthManager()
		switch {
		case err != nil:
			report(false, "jwt secret", err.Error())
		case am.UsingDefaultSecret():
			report(false, "jwt secret", "built-in development secret in use; set VENTO_JWT_SECRET")
		default:
			report(true, "jwt secret", "custom secret configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		b, err := openBackend(ctx)
		if err != nil {
			report(false, "backend", err.Error())
		} else {
			defer b.Close()
			if err := b.Ping(ctx); err != nil {
				report(false, "backend", fmt.Sprintf("%s unreachable: %v", b.Name(), err))
			} else {
				report(true, "backend", b.Name()+" reachable")
			}
			if n, err := b.Users().List(ctx); err == nil {
				report(true, "accounts", fmt.Sprintf("%d", len(n)))
			} else {
				report(false, "accounts", err.Error())
			}
		}

		if failed {
			return userError{errDiagnoseFailed}
		}
		return nil
	},
}
