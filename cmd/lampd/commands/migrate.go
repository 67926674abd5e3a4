package commands

import (
	"fmt"

	"github.com/lamp-blog/lamp/internal/db"
	"github.com/spf13/cobra"
)

var migrateBackup bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Long: `Apply pending schema migrations and report the resulting schema
version. serve does the same on startup.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(
		&migrateBackup, "backup", true,
		"Copy the database before migrating an existing schema",
	)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logMgr, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logMgr.Close()

	var opts []db.MigrateOpt
	if migrateBackup {
		opts = append(opts, db.WithBackup())
	}

	store, err := db.Open(
		cfg.Database.Path, logMgr.Slog(storeSubsystem), opts...,
	)
	if err != nil {
		return err
	}
	defer store.Close()

	version, dirty, err := db.SchemaVersion(store.DB())
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (dirty=%v)\n",
		cfg.Database.Path, version, dirty)

	return nil
}
