package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var (
	migrateDown    bool
	migrateVersion bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema to the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}

		if cfg.Store.Driver != "postgres" {
			if migrateDown || migrateVersion {
				return eris.New("--down and --version require the postgres driver")
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			zap.L().Info("sqlite schema migrated")
			return nil
		}

		dsn := cfg.Store.DatabaseURL
		switch {
		case migrateVersion:
			v, dirty, err := store.MigrationVersion(dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "version %d (dirty: %t)\n", v, dirty)
			return nil
		case migrateDown:
			if err := store.MigrateDown(dsn); err != nil {
				return err
			}
			zap.L().Info("postgres schema reverted")
			return nil
		default:
			return store.MigrateUp(dsn)
		}
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert every migration (postgres)")
	migrateCmd.Flags().BoolVar(&migrateVersion, "version", false, "print the applied schema version (postgres)")
	rootCmd.AddCommand(migrateCmd)
}
