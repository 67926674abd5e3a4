package commands

import (
	"github.com/lamp-blog/lamp/internal/config"
	"github.com/lamp-blog/lamp/internal/db"
	"github.com/spf13/cobra"
)

var (
	// configPath is the TOML configuration file. Empty means defaults.
	configPath string

	// dbPath overrides the configured database path.
	dbPath string

	// logLevel overrides the configured log level.
	logLevel string

	// logDir overrides the configured log directory.
	logDir string
)

// rootCmd is the base command for the daemon.
var rootCmd = &cobra.Command{
	Use:   "lampd",
	Short: "Lamp blog review daemon",
	Long: `lampd serves the Lamp blog API. Articles and comments pass through
a review queue before they become public; reviewer decisions are applied
to every content store by the status dispatcher.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to TOML configuration file",
	)
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.lamp/lamp.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error, critical, off",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "",
		"Directory for rotated log files (empty logs to stderr only)",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration file, if any, and applies the global
// flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		path, err := db.DefaultDBPath()
		if err != nil {
			return config.Config{}, err
		}
		cfg.Database.Path = path
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = logDir
	}

	return cfg, cfg.Validate()
}
