package dedup

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/internal/app"
	"github.com/cellcare/cellcare_backend/internal/repo"
	"github.com/cellcare/cellcare_backend/internal/service/dedup"
)

var errMergeIncomplete = errors.New("duplicates remain after merge")

func NewMergeCommand() *cobra.Command {
	var (
		customerID string
		date       string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge duplicate assessments into the earliest one",
		Long: `Merge every duplicated (customer, day), or a single one with --customer and --date.
Dependents listed under dedup.dependents are re-pointed before a duplicate is deleted.
A full run is followed by a validation pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (customerID == "") != (date == "") {
				return fmt.Errorf("--customer and --date must be used together")
			}

			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}

			var (
				store *repo.PostgresStore
				reg   *dedup.Registry
			)
			stop, err := app.Start(cmd.Context(), cfg, &store, &reg)
			if err != nil {
				return fmt.Errorf("failed to start application: %w", err)
			}
			defer stop(cmd.Context()) //nolint:errcheck

			ctx := cmd.Context()
			merger := dedup.New(store, reg, dedup.WithDryRun(dryRun))
			out := cmd.OutOrStdout()

			if customerID != "" {
				day, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				outcome, err := merger.MergeDuplicateAssessments(ctx, customerID, day)
				if outcome != nil {
					if outcome.Master == nil {
						fmt.Fprintln(out, "No assessments found.")
					} else {
						fmt.Fprintf(out, "master=%s merged=%d failed=%d dry_run=%t\n",
							outcome.Master.ID, outcome.Merged, outcome.Failed, outcome.DryRun)
					}
				}
				return err
			}

			report := merger.MergeAllDuplicates(ctx)
			fmt.Fprintf(out, "customers=%d merged=%d errors=%d dry_run=%t duration=%s\n",
				report.CustomersProcessed, report.RecordsMerged, report.Errors, report.DryRun,
				report.Duration.Round(time.Millisecond))
			if dryRun {
				return nil
			}

			validation, err := merger.ValidateMergeResults(ctx)
			if err != nil {
				return err
			}
			printValidation(out, validation)
			if !validation.Clean() {
				return errMergeIncomplete
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "Merge a single customer (requires --date)")
	cmd.Flags().StringVar(&date, "date", "", "Day to merge, YYYY-MM-DD (requires --customer)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be merged without writing")

	return cmd
}
