package dedup

import "github.com/spf13/cobra"

func NewDedupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Find and merge duplicate assessments",
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewMergeCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
