package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Veraticus/demandflow/internal/cli"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	version    = "dev"
	interrupts = cli.NewInterruptHandler(os.Stderr)
	rootCmd    = &cobra.Command{
		Use:   "demandflow",
		Short: "🛒 Quick-commerce demand forecasting pipeline",
		Long: `demandflow loads the Blinkit order, product, customer, delivery and feedback
exports, cleans and joins them, aggregates product demand and forecasts monthly
demand per category with confidence bands.

Tables go to CSV (and optionally SQLite, XLSX, Postgres and Google Sheets),
forecast plots go to the output directory or an S3 bucket.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/demandflow/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx := interrupts.HandleInterrupts(context.Background())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !interrupts.WasInterrupted() {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// A .env next to the data is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.GetViper()

	// Set up config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Search for config in standard locations
		v.AddConfigPath(fmt.Sprintf("%s/.config/demandflow", home))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	config.SetDefaults(v)
	config.ConfigureEnv(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Set up logging
	if err := common.SetupLogger(v.GetString("logging.level"), v.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded config file", "path", used)
	}
	return nil
}

// bindFlags binds config keys to the flags of the command being run. Commands
// share keys, so binding happens at run time rather than at construction.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig decodes the merged flags, environment and config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("configuration is invalid", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "demandflow %s\n", version)
		},
	}
}
