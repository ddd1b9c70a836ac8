package dedup

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/internal/app"
	"github.com/cellcare/cellcare_backend/internal/service/dedup"
)

func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Report any remaining duplicate assessments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}

			var merger *dedup.Merger
			stop, err := app.Start(cmd.Context(), cfg, &merger)
			if err != nil {
				return fmt.Errorf("failed to start application: %w", err)
			}
			defer stop(cmd.Context()) //nolint:errcheck

			report, err := merger.ValidateMergeResults(cmd.Context())
			if err != nil {
				return err
			}
			printValidation(cmd.OutOrStdout(), report)
			if !report.Clean() {
				return errMergeIncomplete
			}
			return nil
		},
	}

	return cmd
}

func printValidation(w io.Writer, r *dedup.ValidationReport) {
	fmt.Fprintf(w, "total_assessments=%d customers_with_duplicates=%d\n", r.TotalAssessments, len(r.Remaining))
	for _, rem := range r.Remaining {
		for _, g := range rem.Groups {
			fmt.Fprintf(w, "  %s %s count=%d\n", rem.CustomerID, g.AssessmentDate.Format(time.DateOnly), g.Count)
		}
	}
}
