// Package repo persists health assessments, the one-per-customer-per-day
// visit records, and answers the grouping queries used for duplicate repair.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("assessment not found")

const StatusActive = "Active"

// Where an assessment's date came from.
const (
	DateSourceAuto     = "auto"     // resolved by the exam-date lookup service
	DateSourceFallback = "fallback" // lookup failed, today was used
	DateSourceManual   = "manual"   // no exam id supplied, one was minted
)

// Assessment is the canonical visit record. AssessmentDate always holds
// midnight UTC of the calendar day it represents.
type Assessment struct {
	ID             uuid.UUID
	CustomerID     string
	ExamID         string
	AssessmentDate time.Time
	Department     *string
	Doctor         *string
	Status         string
	DateSource     string
	CreatedBy      *string
	UpdatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	c := *a
	c.Department = cloneString(a.Department)
	c.Doctor = cloneString(a.Doctor)
	c.CreatedBy = cloneString(a.CreatedBy)
	c.UpdatedBy = cloneString(a.UpdatedBy)
	return &c
}

// VisitUpdate carries the mutable fields of an assessment. Nil fields are
// left untouched.
type VisitUpdate struct {
	ExamID     *string
	Department *string
	Doctor     *string
	UpdatedBy  *string
}

// IsEmpty reports whether the update would change nothing.
func (u VisitUpdate) IsEmpty() bool {
	return u.ExamID == nil && u.Department == nil && u.Doctor == nil
}

// CustomerDuplicates is one customer holding more than one assessment.
type CustomerDuplicates struct {
	CustomerID  string
	RecordCount int
	Dates       []time.Time
}

// DateDuplicates is one (customer, day) group holding more than one assessment.
type DateDuplicates struct {
	AssessmentDate time.Time
	Count          int
	ExamIDs        []string
}

// CustomerStatus is what the customer directory knows about a customer.
type CustomerStatus struct {
	Exists bool
	Active bool
}

// Day returns midnight UTC of t's calendar day as observed in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewID returns a time-ordered assessment id.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
