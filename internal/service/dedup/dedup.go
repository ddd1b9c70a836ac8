// Package dedup repairs customers holding more than one assessment for the
// same calendar day by folding the later rows into the earliest one.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/cellcare/cellcare_backend/internal/repo"
	"github.com/cellcare/cellcare_backend/pkg/observability"
)

const meterScope = "github.com/cellcare/cellcare_backend/internal/service/dedup"

type Store interface {
	CustomersWithMultipleAssessments(ctx context.Context) ([]repo.CustomerDuplicates, error)
	DuplicateDatesByCustomer(ctx context.Context, customerID string) ([]repo.DateDuplicates, error)
	ListByCustomerAndDate(ctx context.Context, customerID string, day time.Time) ([]*repo.Assessment, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// MergeOutcome describes one (customer, day) merge. Master is nil when the
// day held no assessments.
type MergeOutcome struct {
	Master *repo.Assessment
	Merged int // losers deleted, or that would be deleted in a dry run
	Failed int // losers kept because re-pointing failed
	DryRun bool
}

type MergeReport struct {
	CustomersProcessed int
	RecordsMerged      int
	Errors             int
	DryRun             bool
	Duration           time.Duration
}

type RemainingDuplicates struct {
	CustomerID string
	Groups     []repo.DateDuplicates
}

type ValidationReport struct {
	Remaining        []RemainingDuplicates
	TotalAssessments int64
}

// Clean reports whether no (customer, day) holds more than one assessment.
func (v *ValidationReport) Clean() bool {
	return len(v.Remaining) == 0
}

// ---------------------------------------------------------------------------
// Merger
// ---------------------------------------------------------------------------

type Merger struct {
	store      Store
	repointers *Registry
	dryRun     bool

	merged   metric.Int64Counter
	failures metric.Int64Counter
}

type Option func(*Merger)

// WithDryRun makes merges report what they would do without writing.
func WithDryRun(dryRun bool) Option {
	return func(m *Merger) { m.dryRun = dryRun }
}

func New(store Store, repointers *Registry, opts ...Option) *Merger {
	if repointers == nil {
		repointers = NewRegistry()
	}
	m := &Merger{
		store:      store,
		repointers: repointers,
		merged:     observability.Counter(meterScope, "dedup.records.merged", "Duplicate assessments folded into their master"),
		failures:   observability.Counter(meterScope, "dedup.errors", "Duplicate merges that failed"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Merger) FindCustomersWithDuplicates(ctx context.Context) ([]repo.CustomerDuplicates, error) {
	customers, err := m.store.CustomersWithMultipleAssessments(ctx)
	if err != nil {
		return nil, fmt.Errorf("find customers with duplicates: %w", err)
	}
	return customers, nil
}

func (m *Merger) FindDuplicatesByCustomer(ctx context.Context, customerID string) ([]repo.DateDuplicates, error) {
	groups, err := m.store.DuplicateDatesByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find duplicates for customer %s: %w", customerID, err)
	}
	return groups, nil
}

// MergeDuplicateAssessments keeps the earliest-created assessment of the day
// and folds the others into it. A loser whose dependents cannot be re-pointed
// is left in place and reported in the returned error; the others are still
// merged. Running it on a day with at most one row changes nothing.
func (m *Merger) MergeDuplicateAssessments(ctx context.Context, customerID string, day time.Time) (*MergeOutcome, error) {
	day = repo.Day(day, time.UTC)
	rows, err := m.store.ListByCustomerAndDate(ctx, customerID, day)
	if err != nil {
		return nil, fmt.Errorf("load assessments for %s on %s: %w", customerID, day.Format(time.DateOnly), err)
	}

	outcome := &MergeOutcome{DryRun: m.dryRun}
	if len(rows) == 0 {
		return outcome, nil
	}
	sortByCreation(rows)
	master, losers := rows[0], rows[1:]
	outcome.Master = master
	if len(losers) == 0 {
		return outcome, nil
	}

	log := slog.With(
		"customer_id", customerID,
		"date", day.Format(time.DateOnly),
		"master_id", master.ID,
	)

	if m.dryRun {
		outcome.Merged = len(losers)
		log.Info("dry run: would merge duplicate assessments", "losers", len(losers))
		return outcome, nil
	}

	var (
		deletable []uuid.UUID
		errs      []error
	)
	for _, loser := range losers {
		if err := m.repointers.RepointAll(ctx, loser.ID, master.ID); err != nil {
			outcome.Failed++
			errs = append(errs, fmt.Errorf("loser %s: %w", loser.ID, err))
			log.Error("re-pointing failed, keeping duplicate", "loser_id", loser.ID, "err", err)
			continue
		}
		deletable = append(deletable, loser.ID)
	}

	if len(deletable) > 0 {
		n, err := m.store.DeleteByIDs(ctx, deletable)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete merged assessments: %w", err))
			m.failures.Add(ctx, 1)
			return outcome, errors.Join(errs...)
		}
		outcome.Merged = int(n)
		m.merged.Add(ctx, n)
	}

	if len(errs) > 0 {
		m.failures.Add(ctx, int64(len(errs)))
		return outcome, errors.Join(errs...)
	}

	log.Info("duplicate assessments merged", "merged", outcome.Merged)
	return outcome, nil
}

// MergeAllDuplicates merges every duplicated (customer, day). A failure for
// one customer is counted and logged and does not stop the run.
func (m *Merger) MergeAllDuplicates(ctx context.Context) MergeReport {
	start := time.Now()
	report := MergeReport{DryRun: m.dryRun}

	customers, err := m.FindCustomersWithDuplicates(ctx)
	if err != nil {
		report.Errors++
		m.failures.Add(ctx, 1)
		slog.Error("duplicate scan failed", "err", err)
		report.Duration = time.Since(start)
		return report
	}

	for _, c := range customers {
		if ctx.Err() != nil {
			slog.Warn("duplicate merge interrupted", "err", ctx.Err(), "processed", report.CustomersProcessed)
			break
		}
		report.CustomersProcessed++

		merged, failures := m.mergeCustomer(ctx, c.CustomerID)
		report.RecordsMerged += merged
		report.Errors += failures
	}

	report.Duration = time.Since(start)
	slog.Info("duplicate merge finished",
		"customers", report.CustomersProcessed,
		"merged", report.RecordsMerged,
		"errors", report.Errors,
		"dry_run", report.DryRun,
		"duration", report.Duration,
	)
	return report
}

func (m *Merger) mergeCustomer(ctx context.Context, customerID string) (merged, failures int) {
	groups, err := m.FindDuplicatesByCustomer(ctx, customerID)
	if err != nil {
		m.failures.Add(ctx, 1)
		slog.Error("duplicate lookup failed", "customer_id", customerID, "err", err)
		return 0, 1
	}

	for _, g := range groups {
		outcome, err := m.MergeDuplicateAssessments(ctx, customerID, g.AssessmentDate)
		if outcome != nil {
			merged += outcome.Merged
		}
		if err != nil {
			failures++
			slog.Error("duplicate merge failed",
				"customer_id", customerID,
				"date", g.AssessmentDate.Format(time.DateOnly),
				"err", err,
			)
		}
	}
	return merged, failures
}

// ValidateMergeResults lists every (customer, day) still holding more than
// one assessment, plus the total assessment count.
func (m *Merger) ValidateMergeResults(ctx context.Context) (*ValidationReport, error) {
	customers, err := m.FindCustomersWithDuplicates(ctx)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{}
	for _, c := range customers {
		groups, err := m.FindDuplicatesByCustomer(ctx, c.CustomerID)
		if err != nil {
			return nil, err
		}
		if len(groups) > 0 {
			report.Remaining = append(report.Remaining, RemainingDuplicates{CustomerID: c.CustomerID, Groups: groups})
		}
	}

	report.TotalAssessments, err = m.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count assessments: %w", err)
	}
	return report, nil
}

// sortByCreation orders rows oldest first, breaking ties by id.
func sortByCreation(rows []*repo.Assessment) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}
