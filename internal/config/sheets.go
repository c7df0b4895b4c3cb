package config

import (
	"github.com/Veraticus/demandflow/internal/sheets"
)

// LoadSheetsConfig completes the Google Sheets configuration decoded from viper.
// It follows this precedence:
// 1. Viper configuration (from config file or DEMANDFLOW_SHEETS_* env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig(cfg sheets.Config) sheets.Config {
	defaults := sheets.DefaultConfig()

	cfg.LoadFromEnv()
	cfg.ServiceAccountPath = ExpandPath(cfg.ServiceAccountPath)

	if len(cfg.Tables) == 0 {
		cfg.Tables = defaults.Tables
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaults.TimeZone
	}
	return cfg
}
