package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process store with the same semantics as
// PostgresStore. Dependent tables are modelled as table.column -> row id ->
// assessment id.
type MemoryStore struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*Assessment
	dependents map[string]map[string]uuid.UUID
	customers  map[string]CustomerStatus
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:       make(map[uuid.UUID]*Assessment),
		dependents: make(map[string]map[string]uuid.UUID),
		customers:  make(map[string]CustomerStatus),
		now:        time.Now,
	}
}

// SetClock replaces the timestamp source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Insert stores a as is, keeping caller-provided timestamps. It is meant for
// seeding legacy data.
func (m *MemoryStore) Insert(a *Assessment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := a.Clone()
	if c.ID == uuid.Nil {
		c.ID = NewID()
	}
	c.AssessmentDate = Day(c.AssessmentDate, time.UTC)
	m.rows[c.ID] = c
}

// PutCustomer registers a customer in the directory.
func (m *MemoryStore) PutCustomer(customerID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customerID] = CustomerStatus{Exists: true, Active: active}
}

// PutDependent records a dependent row in table.column pointing at assessmentID.
func (m *MemoryStore) PutDependent(table, column, rowID string, assessmentID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := table + "." + column
	if m.dependents[key] == nil {
		m.dependents[key] = make(map[string]uuid.UUID)
	}
	m.dependents[key][rowID] = assessmentID
}

// Dependent returns the assessment id a dependent row points at.
func (m *MemoryStore) Dependent(table, column, rowID string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dependents[table+"."+column][rowID]
	return id, ok
}

// Get returns a copy of the assessment with id.
func (m *MemoryStore) Get(id uuid.UUID) (*Assessment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	return a.Clone(), ok
}

func (m *MemoryStore) FindLatestByCustomerAndDate(_ context.Context, customerID string, day time.Time) (*Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.matching(customerID, day)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[len(rows)-1].Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = NewID()
	}
	if _, exists := m.rows[a.ID]; exists {
		return fmt.Errorf("insert assessment: duplicate id %s", a.ID)
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.DateSource == "" {
		a.DateSource = DateSourceAuto
	}
	now := m.now().UTC()
	a.AssessmentDate = Day(a.AssessmentDate, time.UTC)
	a.CreatedAt, a.UpdatedAt = now, now
	m.rows[a.ID] = a.Clone()
	return nil
}

func (m *MemoryStore) UpdateVisit(_ context.Context, id uuid.UUID, u VisitUpdate) (*Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.ExamID != nil {
		a.ExamID = *u.ExamID
	}
	if u.Department != nil {
		a.Department = cloneString(u.Department)
	}
	if u.Doctor != nil {
		a.Doctor = cloneString(u.Doctor)
	}
	if u.UpdatedBy != nil {
		a.UpdatedBy = cloneString(u.UpdatedBy)
	}
	a.UpdatedAt = m.now().UTC()
	return a.Clone(), nil
}

func (m *MemoryStore) ListByCustomerAndDate(_ context.Context, customerID string, day time.Time) ([]*Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.matching(customerID, day)
	out := make([]*Assessment, len(rows))
	for i, a := range rows {
		out[i] = a.Clone()
	}
	return out, nil
}

func (m *MemoryStore) CustomersWithMultipleAssessments(_ context.Context) ([]CustomerDuplicates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCustomer := make(map[string]*CustomerDuplicates)
	seenDates := make(map[string]map[time.Time]bool)
	for _, a := range m.rows {
		d := byCustomer[a.CustomerID]
		if d == nil {
			d = &CustomerDuplicates{CustomerID: a.CustomerID}
			byCustomer[a.CustomerID] = d
			seenDates[a.CustomerID] = make(map[time.Time]bool)
		}
		d.RecordCount++
		if !seenDates[a.CustomerID][a.AssessmentDate] {
			seenDates[a.CustomerID][a.AssessmentDate] = true
			d.Dates = append(d.Dates, a.AssessmentDate)
		}
	}

	var out []CustomerDuplicates
	for _, d := range byCustomer {
		if d.RecordCount < 2 {
			continue
		}
		sort.Slice(d.Dates, func(i, j int) bool { return d.Dates[i].Before(d.Dates[j]) })
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (m *MemoryStore) DuplicateDatesByCustomer(_ context.Context, customerID string) ([]DateDuplicates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay := make(map[time.Time][]*Assessment)
	for _, a := range m.rows {
		if a.CustomerID == customerID {
			byDay[a.AssessmentDate] = append(byDay[a.AssessmentDate], a)
		}
	}

	var out []DateDuplicates
	for day, rows := range byDay {
		if len(rows) < 2 {
			continue
		}
		sortByCreation(rows)
		d := DateDuplicates{AssessmentDate: day, Count: len(rows)}
		for _, a := range rows {
			d.ExamIDs = append(d.ExamIDs, a.ExamID)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssessmentDate.Before(out[j].AssessmentDate) })
	return out, nil
}

func (m *MemoryStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *MemoryStore) Repoint(_ context.Context, table, column string, from, to uuid.UUID) (int64, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnsafeIdentifier, table, column)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for rowID, id := range m.dependents[table+"."+column] {
		if id == from {
			m.dependents[table+"."+column][rowID] = to
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CustomerStatus(_ context.Context, customerID string) (CustomerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[customerID], nil
}

// matching returns the customer's rows on day, oldest first. Callers hold mu.
func (m *MemoryStore) matching(customerID string, day time.Time) []*Assessment {
	day = Day(day, time.UTC)
	var rows []*Assessment
	for _, a := range m.rows {
		if a.CustomerID == customerID && a.AssessmentDate.Equal(day) {
			rows = append(rows, a)
		}
	}
	sortByCreation(rows)
	return rows
}

func sortByCreation(rows []*Assessment) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}
