package assessment

import "github.com/spf13/cobra"

func NewAssessmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assessment",
		Short: "Unified assessment commands",
	}

	cmd.AddCommand(NewUnifyCommand())
	cmd.AddCommand(NewResolveDateCommand())

	return cmd
}
