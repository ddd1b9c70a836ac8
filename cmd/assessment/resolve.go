package assessment

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/pkg/examdate"
)

func NewResolveDateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve-date EXAM_ID...",
		Short: "Look up visit dates for exam ids through the exam-date service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}

			client, err := examdate.NewFromCentral(cfg.ExamDate)
			if err != nil {
				return fmt.Errorf("failed to create exam-date client: %w", err)
			}

			dates := client.ResolveDatesBatch(cmd.Context(), args)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EXAM ID\tDATE\tDAY")
			for _, id := range args {
				date, ok := dates[id]
				if !ok {
					fmt.Fprintf(w, "%s\t-\tunresolved\n", id)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, date, examdate.DatePart(date))
			}
			return w.Flush()
		},
	}

	return cmd
}
