package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cellcare/cellcare_backend/internal/repo"
	"github.com/cellcare/cellcare_backend/pkg/examdate"
	"github.com/cellcare/cellcare_backend/pkg/observability"
)

const instrumentationScope = "github.com/cellcare/cellcare_backend/internal/service/assessment"

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Resolver maps an exam id to its canonical "YYYY-MM-DD HH:mm:ss" visit date.
type Resolver interface {
	ResolveDate(ctx context.Context, examID string) (string, bool)
}

type Store interface {
	FindLatestByCustomerAndDate(ctx context.Context, customerID string, day time.Time) (*repo.Assessment, error)
	Create(ctx context.Context, a *repo.Assessment) error
	UpdateVisit(ctx context.Context, id uuid.UUID, u repo.VisitUpdate) (*repo.Assessment, error)
}

type CustomerDirectory interface {
	CustomerStatus(ctx context.Context, customerID string) (repo.CustomerStatus, error)
}

// Locker serialises callers working on the same key.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type UnifiedRequest struct {
	CustomerID string
	Department string
	ExamID     string // optional
	Doctor     string // optional
	Actor      string
}

// Deps wires the registry. Store and Resolver are required; Customers and
// Locker are optional. Location defaults to UTC and Now to time.Now.
type Deps struct {
	Store     Store
	Resolver  Resolver
	Customers CustomerDirectory
	Locker    Locker
	Location  *time.Location
	Now       func() time.Time
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

type Service interface {
	// GetOrCreateUnified returns the single assessment for the customer on
	// the visit day, creating it or reconciling its exam id as needed.
	GetOrCreateUnified(ctx context.Context, req UnifiedRequest) (*repo.Assessment, error)
}

type service struct {
	store     Store
	resolver  Resolver
	customers CustomerDirectory
	locker    Locker
	loc       *time.Location
	now       func() time.Time

	tracer     trace.Tracer
	fallbacks  metric.Int64Counter
	created    metric.Int64Counter
	reconciled metric.Int64Counter
}

func New(deps Deps) Service {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:      deps.Store,
		resolver:   deps.Resolver,
		customers:  deps.Customers,
		locker:     deps.Locker,
		loc:        loc,
		now:        now,
		tracer:     otel.Tracer(instrumentationScope),
		fallbacks:  observability.Counter(instrumentationScope, "assessment.date.fallbacks", "Assessments dated today because the exam date could not be resolved"),
		created:    observability.Counter(instrumentationScope, "assessment.created", "Assessments inserted"),
		reconciled: observability.Counter(instrumentationScope, "assessment.reconciled", "Existing assessments updated by a later caller"),
	}
}

// visit is the outcome of date resolution.
type visit struct {
	day        time.Time
	examID     string // empty when the caller supplied none
	dateSource string
}

func (s *service) GetOrCreateUnified(ctx context.Context, req UnifiedRequest) (*repo.Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "assessment.GetOrCreateUnified",
		trace.WithAttributes(
			attribute.String("customer.id", req.CustomerID),
			attribute.String("department", req.Department),
		),
	)
	defer span.End()

	a, err := s.getOrCreate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("assessment.id", a.ID.String()),
		attribute.String("assessment.date_source", a.DateSource),
	)
	return a, nil
}

func (s *service) getOrCreate(ctx context.Context, req UnifiedRequest) (*repo.Assessment, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ExamID = strings.TrimSpace(req.ExamID)
	if req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if err := s.checkCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	// One clock read per request: the visit day and a minted exam id must
	// name the same day.
	now := s.now().In(s.loc)
	v := s.resolveVisit(ctx, req.ExamID, now)

	if s.locker != nil {
		key := req.CustomerID + ":" + v.day.Format(time.DateOnly)
		release, err := s.locker.Acquire(ctx, key)
		if err != nil {
			slog.Warn("assessment lock unavailable, continuing unlocked", "key", key, "err", err)
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					slog.Warn("assessment lock release failed", "key", key, "err", err)
				}
			}()
		}
	}

	existing, err := s.store.FindLatestByCustomerAndDate(ctx, req.CustomerID, v.day)
	switch {
	case err == nil:
		return s.reconcile(ctx, existing, req, v)
	case errors.Is(err, repo.ErrNotFound):
		return s.create(ctx, req, v, now)
	default:
		return nil, fmt.Errorf("lookup assessment for customer %s on %s: %w",
			req.CustomerID, v.day.Format(time.DateOnly), err)
	}
}

func (s *service) checkCustomer(ctx context.Context, customerID string) error {
	if s.customers == nil {
		return nil
	}
	st, err := s.customers.CustomerStatus(ctx, customerID)
	if err != nil {
		return fmt.Errorf("check customer %s: %w", customerID, err)
	}
	if !st.Exists {
		return ErrCustomerNotFound
	}
	if !st.Active {
		return ErrCustomerInactive
	}
	return nil
}

// resolveVisit determines the visit day. It never fails: an unresolvable
// exam id falls back to today in the clinic time zone.
func (s *service) resolveVisit(ctx context.Context, examID string, now time.Time) visit {
	today := repo.Day(now, s.loc)
	if examID == "" {
		return visit{day: today, dateSource: repo.DateSourceManual}
	}

	if date, ok := s.resolver.ResolveDate(ctx, examID); ok {
		day, err := examdate.ParseDay(date)
		if err == nil {
			return visit{day: day, examID: examID, dateSource: repo.DateSourceAuto}
		}
		slog.Warn("resolved exam date unparseable", "exam_id", examID, "date", date, "err", err)
	}

	s.fallbacks.Add(ctx, 1)
	slog.Warn("exam date unresolved, using today",
		"exam_id", examID,
		"date", today.Format(time.DateOnly),
	)
	return visit{day: today, examID: examID, dateSource: repo.DateSourceFallback}
}

func (s *service) reconcile(ctx context.Context, a *repo.Assessment, req UnifiedRequest, v visit) (*repo.Assessment, error) {
	var u repo.VisitUpdate
	if v.examID != "" && v.examID != a.ExamID {
		u.ExamID = &v.examID
	}
	if changed(req.Department, a.Department) {
		u.Department = &req.Department
	}
	if changed(req.Doctor, a.Doctor) {
		u.Doctor = &req.Doctor
	}
	if u.IsEmpty() {
		return a, nil
	}
	u.UpdatedBy = optional(req.Actor)

	updated, err := s.store.UpdateVisit(ctx, a.ID, u)
	if err != nil {
		return nil, fmt.Errorf("update assessment %s: %w", a.ID, err)
	}
	s.reconciled.Add(ctx, 1)
	if u.ExamID != nil {
		slog.Info("assessment exam id reconciled",
			"assessment_id", a.ID,
			"previous_exam_id", a.ExamID,
			"exam_id", v.examID,
		)
	}
	return updated, nil
}

func (s *service) create(ctx context.Context, req UnifiedRequest, v visit, now time.Time) (*repo.Assessment, error) {
	examID := v.examID
	if examID == "" {
		examID = GenerateMedicalExamID(now)
	}

	a := &repo.Assessment{
		ID:             repo.NewID(),
		CustomerID:     req.CustomerID,
		ExamID:         examID,
		AssessmentDate: v.day,
		Department:     optional(req.Department),
		Doctor:         optional(req.Doctor),
		Status:         repo.StatusActive,
		DateSource:     v.dateSource,
		CreatedBy:      optional(req.Actor),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assessment for customer %s: %w", req.CustomerID, err)
	}
	s.created.Add(ctx, 1)
	slog.Debug("assessment created",
		"assessment_id", a.ID,
		"customer_id", a.CustomerID,
		"exam_id", a.ExamID,
		"date_source", a.DateSource,
	)
	return a, nil
}

func changed(incoming string, stored *string) bool {
	if incoming == "" {
		return false
	}
	return stored == nil || *stored != incoming
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
