// Backup and restore commands move snapshots between backends and
// storage locations.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/vento/internal/backup"
)

var (
	flagBackupDest string
	flagRestoreSrc string
	flagOverwrite  bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of all users and products",
	Long: `Backup exports every account and product from the configured backend.
--dest is a local directory, a .json file path, or s3://bucket/prefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		snap, err := backup.Export(ctx, b)
		if err != nil {
			return err
		}
		loc, err := backup.Save(ctx, flagBackupDest, snap, cfg.s3)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d users and %d products to %s\n",
			len(snap.Users), snap.ProductCount(), loc)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Import a snapshot into the configured backend",
	Long: `Restore reads a snapshot written by backup and imports it. Existing
records are kept unless --overwrite is given. Restoring into a different
backend migrates the data, for example from text files to MongoDB.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snap, err := backup.Load(ctx, flagRestoreSrc, cfg.s3)
		if err != nil {
			return userError{err}
		}
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		st, err := backup.Import(ctx, b, snap, flagOverwrite, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"Restored into %s: users %d added, %d updated, %d skipped; products %d added, %d updated, %d skipped\n",
			b.Name(), st.UsersAdded, st.UsersUpdated, st.UsersSkipped,
			st.ProductsAdded, st.ProductsUpdated, st.ProductsSkipped)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&flagBackupDest, "dest", "", "destination directory, file or s3://bucket/prefix")
	_ = backupCmd.MarkFlagRequired("dest")
	restoreCmd.Flags().StringVar(&flagRestoreSrc, "src", "", "snapshot file or s3://bucket/key")
	restoreCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "replace existing users and products")
	_ = restoreCmd.MarkFlagRequired("src")
}
