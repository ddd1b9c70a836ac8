package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FindLatestPicksNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	day := time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)
	base := time.Date(2024, 10, 17, 8, 0, 0, 0, time.UTC)

	store.Insert(&Assessment{CustomerID: "C1", ExamID: "old", AssessmentDate: day, CreatedAt: base})
	store.Insert(&Assessment{CustomerID: "C1", ExamID: "new", AssessmentDate: day, CreatedAt: base.Add(time.Hour)})
	store.Insert(&Assessment{CustomerID: "C1", ExamID: "other-day", AssessmentDate: day.AddDate(0, 0, 1), CreatedAt: base.Add(2 * time.Hour)})

	a, err := store.FindLatestByCustomerAndDate(ctx, "C1", day)
	require.NoError(t, err)
	assert.Equal(t, "new", a.ExamID)

	_, err = store.FindLatestByCustomerAndDate(ctx, "C2", day)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 10, 17, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	a := &Assessment{CustomerID: "C1", ExamID: "E1", AssessmentDate: now}
	require.NoError(t, store.Create(ctx, a))
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, now, a.CreatedAt)

	now = now.Add(time.Minute)
	dept := "general"
	updated, err := store.UpdateVisit(ctx, a.ID, VisitUpdate{Department: &dept})
	require.NoError(t, err)
	assert.Equal(t, "E1", updated.ExamID)
	require.NotNil(t, updated.Department)
	assert.Equal(t, "general", *updated.Department)
	assert.Equal(t, now, updated.UpdatedAt)

	_, err = store.UpdateVisit(ctx, uuid.New(), VisitUpdate{Department: &dept})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Grouping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d1 := time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	base := time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC)

	store.Insert(&Assessment{CustomerID: "C1", ExamID: "A", AssessmentDate: d2, CreatedAt: base.Add(time.Hour)})
	store.Insert(&Assessment{CustomerID: "C1", ExamID: "B", AssessmentDate: d2, CreatedAt: base})
	store.Insert(&Assessment{CustomerID: "C1", ExamID: "C", AssessmentDate: d1, CreatedAt: base})
	store.Insert(&Assessment{CustomerID: "C2", ExamID: "D", AssessmentDate: d1, CreatedAt: base})

	customers, err := store.CustomersWithMultipleAssessments(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "C1", customers[0].CustomerID)
	assert.Equal(t, 3, customers[0].RecordCount)
	assert.Equal(t, []time.Time{d1, d2}, customers[0].Dates)

	groups, err := store.DuplicateDatesByCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, d2, groups[0].AssessmentDate)
	assert.Equal(t, []string{"B", "A"}, groups[0].ExamIDs)
}

func TestMemoryStore_RepointAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	master, loser := uuid.New(), uuid.New()
	store.Insert(&Assessment{ID: master, CustomerID: "C1"})
	store.Insert(&Assessment{ID: loser, CustomerID: "C1"})
	store.PutDependent("health_reports", "assessment_id", "r1", loser)

	n, err := store.Repoint(ctx, "health_reports", "assessment_id", loser, master)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, _ := store.Dependent("health_reports", "assessment_id", "r1")
	assert.Equal(t, master, got)

	deleted, err := store.DeleteByIDs(ctx, []uuid.UUID{loser, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
