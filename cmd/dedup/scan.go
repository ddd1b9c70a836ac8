package dedup

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/internal/app"
	"github.com/cellcare/cellcare_backend/internal/service/dedup"
)

func NewScanCommand() *cobra.Command {
	var customerID string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List customers and days holding more than one assessment",
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

			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			if customerID != "" {
				groups, err := merger.FindDuplicatesByCustomer(ctx, customerID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "DATE\tCOUNT\tEXAM IDS")
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%d\t%s\n", g.AssessmentDate.Format(time.DateOnly), g.Count, strings.Join(g.ExamIDs, ","))
				}
				return w.Flush()
			}

			customers, err := merger.FindCustomersWithDuplicates(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "CUSTOMER\tRECORDS\tDATES")
			for _, c := range customers {
				dates := make([]string, len(c.Dates))
				for i, d := range c.Dates {
					dates[i] = d.Format(time.DateOnly)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", c.CustomerID, c.RecordCount, strings.Join(dates, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "Show the duplicated days of a single customer")

	return cmd
}
