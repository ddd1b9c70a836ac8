package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const assessmentColumns = "id, customer_id, exam_id, assessment_date, department, doctor, " +
	"status, date_source, created_by, updated_by, created_at, updated_at"

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ErrUnsafeIdentifier is returned for table or column names that are not
// plain lower-case SQL identifiers.
var ErrUnsafeIdentifier = errors.New("unsafe sql identifier")

// ValidIdentifier reports whether name can be used as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// PostgresStore keeps assessments in the health_assessments table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a                  Assessment
		department, doctor sql.NullString
		createdBy, updated sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.CustomerID, &a.ExamID, &a.AssessmentDate, &department, &doctor,
		&a.Status, &a.DateSource, &createdBy, &updated, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.AssessmentDate = Day(a.AssessmentDate, time.UTC)
	a.Department = nullableString(department)
	a.Doctor = nullableString(doctor)
	a.CreatedBy = nullableString(createdBy)
	a.UpdatedBy = nullableString(updated)
	return &a, nil
}

// FindLatestByCustomerAndDate returns the most recently created assessment
// for the customer on day, or ErrNotFound.
func (s *PostgresStore) FindLatestByCustomerAndDate(ctx context.Context, customerID string, day time.Time) (*Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM health_assessments
		WHERE customer_id = $1 AND assessment_date = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		customerID, dateParam(day),
	)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	return a, nil
}

// Create inserts a. ID is generated when zero; timestamps are assigned by
// the database and written back into a.
func (s *PostgresStore) Create(ctx context.Context, a *Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = NewID()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.DateSource == "" {
		a.DateSource = DateSourceAuto
	}
	a.AssessmentDate = Day(a.AssessmentDate, time.UTC)

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO health_assessments
			(id, customer_id, exam_id, assessment_date, department, doctor, status, date_source, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.CustomerID, a.ExamID, dateParam(a.AssessmentDate), a.Department, a.Doctor,
		a.Status, a.DateSource, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// UpdateVisit applies u to the assessment with id and returns the stored row.
func (s *PostgresStore) UpdateVisit(ctx context.Context, id uuid.UUID, u VisitUpdate) (*Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE health_assessments SET
			exam_id    = COALESCE($2, exam_id),
			department = COALESCE($3, department),
			doctor     = COALESCE($4, doctor),
			updated_by = COALESCE($5, updated_by),
			updated_at = now()
		WHERE id = $1
		RETURNING `+assessmentColumns,
		id, u.ExamID, u.Department, u.Doctor, u.UpdatedBy,
	)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update assessment %s: %w", id, err)
	}
	return a, nil
}

// ListByCustomerAndDate returns every assessment for the customer on day,
// oldest first. Rows created in the same instant are ordered by id.
func (s *PostgresStore) ListByCustomerAndDate(ctx context.Context, customerID string, day time.Time) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assessmentColumns+` FROM health_assessments
		WHERE customer_id = $1 AND assessment_date = $2
		ORDER BY created_at ASC, id ASC`,
		customerID, dateParam(day),
	)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CustomersWithMultipleAssessments lists customers holding more than one
// assessment in total, with the distinct days involved.
func (s *PostgresStore) CustomersWithMultipleAssessments(ctx context.Context) ([]CustomerDuplicates, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, COUNT(*),
			array_agg(DISTINCT to_char(assessment_date, 'YYYY-MM-DD'))
		FROM health_assessments
		GROUP BY customer_id
		HAVING COUNT(*) > 1
		ORDER BY customer_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("group assessments by customer: %w", err)
	}
	defer rows.Close()

	var out []CustomerDuplicates
	for rows.Next() {
		var (
			d     CustomerDuplicates
			dates pq.StringArray
		)
		if err := rows.Scan(&d.CustomerID, &d.RecordCount, &dates); err != nil {
			return nil, fmt.Errorf("scan customer group: %w", err)
		}
		for _, raw := range dates {
			t, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return nil, fmt.Errorf("parse assessment date %q: %w", raw, err)
			}
			d.Dates = append(d.Dates, t)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DuplicateDatesByCustomer lists the customer's days holding more than one
// assessment. Exam ids are ordered by creation.
func (s *PostgresStore) DuplicateDatesByCustomer(ctx context.Context, customerID string) ([]DateDuplicates, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT assessment_date, COUNT(*), array_agg(exam_id ORDER BY created_at, id)
		FROM health_assessments
		WHERE customer_id = $1
		GROUP BY assessment_date
		HAVING COUNT(*) > 1
		ORDER BY assessment_date`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("group assessments by date: %w", err)
	}
	defer rows.Close()

	var out []DateDuplicates
	for rows.Next() {
		var (
			d       DateDuplicates
			examIDs pq.StringArray
		)
		if err := rows.Scan(&d.AssessmentDate, &d.Count, &examIDs); err != nil {
			return nil, fmt.Errorf("scan date group: %w", err)
		}
		d.AssessmentDate = Day(d.AssessmentDate, time.UTC)
		d.ExamIDs = []string(examIDs)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteByIDs removes the given assessments and returns how many were deleted.
func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM health_assessments WHERE id = ANY($1::uuid[])`, pq.Array(strs))
	if err != nil {
		return 0, fmt.Errorf("delete assessments: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of assessments.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_assessments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assessments: %w", err)
	}
	return n, nil
}

// Repoint rewrites table.column from one assessment id to another and returns
// the number of rows moved.
func (s *PostgresStore) Repoint(ctx context.Context, table, column string, from, to uuid.UUID) (int64, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnsafeIdentifier, table, column)
	}
	col := pq.QuoteIdentifier(column)
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, pq.QuoteIdentifier(table), col, col)

	res, err := s.db.ExecContext(ctx, query, to, from)
	if err != nil {
		return 0, fmt.Errorf("repoint %s.%s: %w", table, column, err)
	}
	return res.RowsAffected()
}

// CustomerStatus looks the customer up in the customers table.
func (s *PostgresStore) CustomerStatus(ctx context.Context, customerID string) (CustomerStatus, error) {
	var status sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM customers WHERE id = $1`, customerID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return CustomerStatus{}, nil
	}
	if err != nil {
		return CustomerStatus{}, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}
	return CustomerStatus{
		Exists: true,
		Active: !status.Valid || strings.EqualFold(status.String, StatusActive),
	}, nil
}

// dateParam renders a calendar day for a DATE column.
func dateParam(day time.Time) string {
	return day.Format(time.DateOnly)
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
