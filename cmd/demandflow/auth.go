package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/demandflow/internal/cli"
	"github.com/Veraticus/demandflow/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
		Long:  `Authenticate with external services like Google Sheets.`,
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This command will:
1. Print a URL to authenticate with Google
2. Wait for the redirect on a local callback server
3. Save the refresh token to your config file

You'll need to run this once before enabling export.sheets with OAuth2.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")
	cmd.Flags().String("addr", sheets.DefaultCallbackAddr, "Address of the local callback server")
	cmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the browser redirect")
	cmd.Flags().Bool("force", false, "Ignore a cached token and authenticate again")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sc := sheets.Config{
		ClientID:     viper.GetString("sheets.client_id"),
		ClientSecret: viper.GetString("sheets.client_secret"),
	}

	// Override with flags if provided
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		sc.ClientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		sc.ClientSecret = flagSecret
	}
	sc.LoadFromEnv()

	if sc.ClientID == "" || sc.ClientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set sheets.client_id and sheets.client_secret in config or use --client-id and --client-secret flags")
	}

	tokenFile, err := sheetsTokenFile()
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	force, _ := cmd.Flags().GetBool("force")

	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile, "force", force)

	oauthCfg := sheets.OAuth2Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		TokenFile:    tokenFile,
		CallbackAddr: addr,
		Timeout:      timeout,
	}
	authenticate := sheets.GetOrCreateToken
	if force {
		authenticate = sheets.AuthenticateOAuth2Interactive
	}
	token, err := authenticate(ctx, oauthCfg)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	out := cmd.OutOrStdout()

	// Update config file with refresh token
	viper.Set("sheets.refresh_token", token.RefreshToken)
	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		_, _ = fmt.Fprintln(out, cli.FormatWarning("Could not save refresh token to config file"))
		_, _ = fmt.Fprintf(out, "Please add this to your config.yaml manually:\nsheets:\n  refresh_token: %q\n", token.RefreshToken)
		return nil
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Authentication successful!"))
	_, _ = fmt.Fprintln(out, cli.FormatInfo("Set export.sheets: true to publish the forecast on the next run."))
	return nil
}

// sheetsTokenFile is where the OAuth2 token is cached.
func sheetsTokenFile() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "demandflow", "sheets-token.json"), nil
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(home, ".config", "demandflow", "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
