package system

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.OpenFromCentral(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if status {
				return printMigrationStatus(ctx, cmd, db)
			}

			n, err := database.Migrate(ctx, db, database.Migrations)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Migrations executed successfully (%d applied).\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether they are applied, without migrating")
	return cmd
}

func printMigrationStatus(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
	m, err := database.NewMigrator(db, database.Migrations)
	if err != nil {
		return err
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFILE\tSTATE\tAPPLIED AT")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.Source.Path, st.State, applied)
	}
	return w.Flush()
}
