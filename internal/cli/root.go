package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lazypower/lexisync/internal/config"
	"github.com/lazypower/lexisync/internal/engine"
	"github.com/lazypower/lexisync/internal/kv"
	"github.com/lazypower/lexisync/internal/logger"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:          "lexisync",
	Short:        "Personal dictionary store with multi-device sync",
	Long:         "lexisync keeps per-device user dictionaries and merges them across devices through snapshot files in a shared sync directory.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env")

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logger.Init(cfg.Logging.Level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(syncCmd)
}

// newManager resolves the device identity and storage backend and returns
// a manager over the configured directories.
func newManager() (*engine.Manager, error) {
	if err := config.EnsureUserID(&cfg); err != nil {
		return nil, fmt.Errorf("resolve user id: %w", err)
	}
	driver, err := kv.Lookup(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		UserID:      cfg.UserID,
		UserDataDir: cfg.Paths.UserDataDir,
		SyncDir:     cfg.Paths.SyncDir,
		TrashDir:    cfg.TrashDir(),
		Driver:      driver,
	}), nil
}
