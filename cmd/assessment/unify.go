package assessment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/cmd/cmdutil"
	"github.com/cellcare/cellcare_backend/internal/app"
	"github.com/cellcare/cellcare_backend/internal/repo"
	svc "github.com/cellcare/cellcare_backend/internal/service/assessment"
)

type unifiedOutput struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	ExamID         string `json:"exam_id"`
	AssessmentDate string `json:"assessment_date"`
	Department     string `json:"department,omitempty"`
	Doctor         string `json:"doctor,omitempty"`
	Status         string `json:"status"`
	DateSource     string `json:"date_source"`
}

func NewUnifyCommand() *cobra.Command {
	var req svc.UnifiedRequest

	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Get or create the customer's assessment for the visit day",
		Long: `Resolve the visit day from --exam-id (or use today and mint an exam id),
then return the single assessment for the customer on that day, creating it if absent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}

			var service svc.Service
			stop, err := app.Start(cmd.Context(), cfg, &service)
			if err != nil {
				return fmt.Errorf("failed to start application: %w", err)
			}
			defer stop(cmd.Context()) //nolint:errcheck

			a, err := service.GetOrCreateUnified(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(toOutput(a))
		},
	}

	cmd.Flags().StringVar(&req.CustomerID, "customer", "", "Customer id (required)")
	cmd.Flags().StringVar(&req.Department, "department", "", "Submitting department, e.g. lab, general, imaging")
	cmd.Flags().StringVar(&req.ExamID, "exam-id", "", "Exam id assigned by the department, if any")
	cmd.Flags().StringVar(&req.Doctor, "doctor", "", "Attending doctor")
	cmd.Flags().StringVar(&req.Actor, "actor", "", "User performing the change")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}

func toOutput(a *repo.Assessment) unifiedOutput {
	out := unifiedOutput{
		ID:             a.ID.String(),
		CustomerID:     a.CustomerID,
		ExamID:         a.ExamID,
		AssessmentDate: a.AssessmentDate.Format(time.DateOnly),
		Status:         a.Status,
		DateSource:     a.DateSource,
	}
	if a.Department != nil {
		out.Department = *a.Department
	}
	if a.Doctor != nil {
		out.Doctor = *a.Doctor
	}
	return out
}
