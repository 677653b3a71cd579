// Root command for the vento CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/paths"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagBackend   string
	flagLogLevel  string
)

// Set by PersistentPreRunE for every subcommand.
var (
	cfg    settings
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "vento",
	Short:         "VENTO is a multi-tenant inventory manager",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		configDir, err := paths.ResolveConfigDir(flagConfigDir)
		if err != nil {
			return err
		}
		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		cfg = readSettings(v)
		cfg.configDir = configDir
		if flagBackend != "" {
			cfg.store.Backend = flagBackend
		}
		if flagLogLevel != "" {
			cfg.logLevel = flagLogLevel
		}
		cfg.store.DataDir, err = paths.ResolveDataDir(flagDataDir, v.GetString(cfgKeyDataDir))
		if err != nil {
			return err
		}

		logger, err = newLogger(cfg.logLevel, cfg.logFormat)
		if err != nil {
			return userError{fmt.Errorf("init logger: %w", err)}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/vento)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/data)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: textfile, mongo, sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
