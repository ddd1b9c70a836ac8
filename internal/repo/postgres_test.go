package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assessmentRowColumns = []string{
	"id", "customer_id", "exam_id", "assessment_date", "department", "doctor",
	"status", "date_source", "created_by", "updated_by", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_FindLatest(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	day := time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 10, 17, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM health_assessments\s+WHERE customer_id = \$1 AND assessment_date = \$2\s+ORDER BY created_at DESC, id DESC`).
		WithArgs("C1", "2024-10-17").
		WillReturnRows(sqlmock.NewRows(assessmentRowColumns).AddRow(
			id.String(), "C1", "2410170001", day, "lab", nil,
			StatusActive, DateSourceAuto, "nurse", nil, created, created,
		))

	a, err := store.FindLatestByCustomerAndDate(context.Background(), "C1", day)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "2410170001", a.ExamID)
	require.NotNil(t, a.Department)
	assert.Equal(t, "lab", *a.Department)
	assert.Nil(t, a.Doctor)
	assert.Equal(t, day, a.AssessmentDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindLatestNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM health_assessments`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindLatestByCustomerAndDate(context.Background(), "C1", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 10, 17, 9, 0, 0, 0, time.UTC)
	dept := "imaging"

	mock.ExpectQuery(`INSERT INTO health_assessments`).
		WithArgs(sqlmock.AnyArg(), "C1", "E1", "2024-10-17", "imaging", nil, StatusActive, DateSourceManual, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	a := &Assessment{
		CustomerID:     "C1",
		ExamID:         "E1",
		AssessmentDate: time.Date(2024, 10, 17, 15, 4, 0, 0, time.UTC),
		Department:     &dept,
		DateSource:     DateSourceManual,
	}
	require.NoError(t, store.Create(context.Background(), a))

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC), a.AssessmentDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateVisit(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	day := time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)
	examID, actor := "E2", "dr.li"

	mock.ExpectQuery(`UPDATE health_assessments SET`).
		WithArgs(id, "E2", nil, nil, "dr.li").
		WillReturnRows(sqlmock.NewRows(assessmentRowColumns).AddRow(
			id.String(), "C1", "E2", day, nil, nil,
			StatusActive, DateSourceAuto, nil, "dr.li", day, day,
		))

	a, err := store.UpdateVisit(context.Background(), id, VisitUpdate{ExamID: &examID, UpdatedBy: &actor})
	require.NoError(t, err)
	assert.Equal(t, "E2", a.ExamID)
	require.NotNil(t, a.UpdatedBy)
	assert.Equal(t, "dr.li", *a.UpdatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CustomersWithMultipleAssessments(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT customer_id, COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "count", "dates"}).
			AddRow("C1", 3, "{2024-10-16,2024-10-17}"))

	got, err := store.CustomersWithMultipleAssessments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C1", got[0].CustomerID)
	assert.Equal(t, 3, got[0].RecordCount)
	assert.Equal(t, []time.Time{
		time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC),
	}, got[0].Dates)
}

func TestPostgresStore_DuplicateDatesByCustomer(t *testing.T) {
	store, mock := newMockStore(t)
	day := time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT assessment_date, COUNT\(\*\)`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"assessment_date", "count", "exam_ids"}).
			AddRow(day, 2, "{E1,E2}"))

	got, err := store.DuplicateDatesByCustomer(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day, got[0].AssessmentDate)
	assert.Equal(t, []string{"E1", "E2"}, got[0].ExamIDs)
}

func TestPostgresStore_DeleteByIDs(t *testing.T) {
	store, mock := newMockStore(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM health_assessments WHERE id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.DeleteByIDs(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.DeleteByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Repoint(t *testing.T) {
	store, mock := newMockStore(t)
	from, to := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE "laboratory_items" SET "assessment_id" = \$1 WHERE "assessment_id" = \$2`).
		WithArgs(to, from).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.Repoint(context.Background(), "laboratory_items", "assessment_id", from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RepointRejectsUnsafeIdentifier(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Repoint(context.Background(), "reports; DROP TABLE x", "assessment_id", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrUnsafeIdentifier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CustomerStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT status FROM customers`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Inactive"))
	mock.ExpectQuery(`SELECT status FROM customers`).
		WithArgs("C2").
		WillReturnError(sql.ErrNoRows)

	st, err := store.CustomerStatus(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, CustomerStatus{Exists: true, Active: false}, st)

	st, err = store.CustomerStatus(context.Background(), "C2")
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestDay(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 2024-10-16 20:00 UTC is already the 17th in UTC+8.
	ts := time.Date(2024, 10, 16, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC), Day(ts, shanghai))
	assert.Equal(t, time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC), Day(ts, nil))
}
