package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yieldgap-ma/yg-backend/internal/config"
	"github.com/yieldgap-ma/yg-backend/internal/db"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// env loads .env.local and the configuration, applying the --db override.
func env(cmd *cobra.Command) (config.Config, error) {
	_ = godotenv.Load(".env.local")

	cfg := config.LoadFromEnv()
	if url, _ := cmd.Flags().GetString("db"); url != "" {
		cfg.DatabaseURL = url
	}
	return cfg, cfg.Validate()
}

// openStore connects and migrates.
func openStore(cmd *cobra.Command) (config.Config, *gorm.DB, error) {
	cfg, err := env(cmd)
	if err != nil {
		return cfg, nil, err
	}
	d, err := db.Connect(cfg)
	if err != nil {
		return cfg, nil, err
	}
	if err := yieldgap.Migrate(d); err != nil {
		return cfg, nil, err
	}
	return cfg, d, nil
}

// inputPath returns the flag value, or rel under the data directory.
func inputPath(cmd *cobra.Command, flag string, cfg config.Config, rel string) string {
	if p, _ := cmd.Flags().GetString(flag); p != "" {
		return p
	}
	return filepath.Join(cfg.DataDir, rel)
}
