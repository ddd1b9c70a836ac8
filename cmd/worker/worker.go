package worker

import "github.com/spf13/cobra"

func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Background worker commands",
	}

	cmd.AddCommand(NewStartCommand())

	return cmd
}
