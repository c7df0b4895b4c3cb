// Package sheets publishes exported tables to a Google spreadsheet.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/demandflow/internal/model"
)

// DefaultSpreadsheetName is used when a new spreadsheet has to be created.
const DefaultSpreadsheetName = "Blinkit Demand Forecast"

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	RefreshToken       string        `mapstructure:"refresh_token"`
	ServiceAccountPath string        `mapstructure:"service_account_path"`
	SpreadsheetID      string        `mapstructure:"spreadsheet_id"`
	SpreadsheetName    string        `mapstructure:"spreadsheet_name"`
	TimeZone           string        `mapstructure:"time_zone"`
	Tables             []string      `mapstructure:"tables"`
	BatchSize          int           `mapstructure:"batch_size"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	EnableFormatting   bool          `mapstructure:"enable_formatting"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  DefaultSpreadsheetName,
		TimeZone:         "Asia/Kolkata",
		Tables:           []string{model.TableForecast},
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// Configured reports whether any authentication method has been provided.
func (c *Config) Configured() bool {
	return c.ServiceAccountPath != "" || c.ClientID != "" || c.ClientSecret != "" || c.RefreshToken != ""
}

// LoadFromEnv fills unset fields from GOOGLE_SHEETS_* environment variables.
func (c *Config) LoadFromEnv() {
	setFromEnv(&c.ClientID, "GOOGLE_SHEETS_CLIENT_ID")
	setFromEnv(&c.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	setFromEnv(&c.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	setFromEnv(&c.ServiceAccountPath, "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	setFromEnv(&c.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")

	if c.SpreadsheetName == "" || c.SpreadsheetName == DefaultSpreadsheetName {
		if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
			c.SpreadsheetName = v
		}
	}
	if c.SpreadsheetName == "" {
		c.SpreadsheetName = DefaultSpreadsheetName
	}
}

func setFromEnv(field *string, key string) {
	if *field != "" {
		return
	}
	*field = os.Getenv(key)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Check authentication
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("no tables selected for publishing")
	}

	// Validate batch size
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	// Validate retry settings
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	return nil
}
