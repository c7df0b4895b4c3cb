package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/demandflow/internal/cli"
	"github.com/Veraticus/demandflow/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the SQLite export database to the latest schema.

The database is the one configured as export.sqlite.path; run also migrates
it automatically before writing.`,
		RunE: runMigrate,
	}

	// Flags
	cmd.Flags().String("db", "", "SQLite database path (overrides export.sqlite.path)")
	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	if err := bindFlags(cmd, map[string]string{"export.sqlite.path": "db"}); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Export.SQLite.Path
	if dbPath == "" {
		return fmt.Errorf("no database configured: set export.sqlite.path or pass --db")
	}

	slog.Info("Starting database migration", "database", dbPath, "status_only", status)

	// Create storage instance
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Schema version %d of %d", current, storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			_, _ = fmt.Fprintln(out, cli.FormatWarning(msg+" (run 'demandflow migrate')"))
		} else {
			_, _ = fmt.Fprintln(out, cli.FormatSuccess(msg))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Database migrations completed: "+dbPath))
	return nil
}
