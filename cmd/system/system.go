package system

import "github.com/spf13/cobra"

// NewSystemCommand groups database and tooling maintenance.
func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Database bootstrap, schema migrations and tooling",
	}

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewGenDocsCommand())

	return cmd
}
