package commands

import (
	"database/sql"

	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/db"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/library"
	"github.com/teranos/promptforge/logger"
)

// loadConfig resolves the effective configuration, honoring the global
// --config flag over the usual discovery order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return cfg, nil
}

// openDatabase opens and migrates the configured database.
// Uses logger.Logger for db operations.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	path := cfg.GetDatabasePath()

	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	return database, nil
}

// openStore opens the configured database and builds a library store on it.
// The caller owns the returned *sql.DB and must close it.
func openStore(cmd *cobra.Command) (*library.Store, *sql.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	return library.NewStore(database, logger.Logger), database, nil
}
