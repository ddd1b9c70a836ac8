package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	assessmentcmd "github.com/cellcare/cellcare_backend/cmd/assessment"
	dedupcmd "github.com/cellcare/cellcare_backend/cmd/dedup"
	systemcmd "github.com/cellcare/cellcare_backend/cmd/system"
	workercmd "github.com/cellcare/cellcare_backend/cmd/worker"
	"github.com/cellcare/cellcare_backend/pkg/logs"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "cellcare",
	Short: "CellCare clinic backend: unified health assessments and duplicate repair.",
	Long: `CellCare keeps one health assessment per customer per calendar day.
It resolves exam dates through the external lookup service, reconciles exam ids
from department writers, and merges historical duplicate assessments.`,
	SilenceUsage: true,
}

func Execute() {
	// Replaced by the configured logger once a command has read its config.
	slog.SetDefault(logs.Default())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(assessmentcmd.NewAssessmentCommand())
	rootCmd.AddCommand(dedupcmd.NewDedupCommand())
	rootCmd.AddCommand(workercmd.NewWorkerCommand())
}
