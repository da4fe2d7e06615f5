package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"k8s.io/utils/ptr"
)

// RentalStatus is the lifecycle state of a rental.
type RentalStatus string

const (
	RentalActive    RentalStatus = "active"
	RentalCompleted RentalStatus = "completed"
	RentalCancelled RentalStatus = "cancelled"
)

// EndedBy records who closed a rental.
type EndedBy string

const (
	EndedByUser   EndedBy = "user"
	EndedByAdmin  EndedBy = "admin"
	EndedBySystem EndedBy = "system"
)

// Rental is a paid, time-boxed session on one car. Rentals are never deleted.
type Rental struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CarID     uuid.UUID `json:"car_id"`
	StartedAt time.Time `json:"started_at"`

	// DurationMinutes is the total bought so far, extensions included.
	DurationMinutes int `json:"duration_minutes"`
	// ExtendedMinutes is the part of DurationMinutes bought through Extend.
	ExtendedMinutes int `json:"extended_minutes"`

	Status  RentalStatus    `json:"status"`
	EndedAt *time.Time      `json:"ended_at,omitempty"`
	EndedBy EndedBy         `json:"ended_by,omitempty"`
	Cost    decimal.Decimal `json:"cost"`

	IssueReport *string `json:"issue_report,omitempty"`
	Rating      *int    `json:"rating,omitempty"`
	Feedback    *string `json:"feedback,omitempty"`
}

// NewRental returns an active rental starting at now.
func NewRental(userID, carID uuid.UUID, minutes int, cost decimal.Decimal, now time.Time) *Rental {
	return &Rental{
		ID:              uuid.New(),
		UserID:          userID,
		CarID:           carID,
		StartedAt:       now,
		DurationMinutes: minutes,
		Status:          RentalActive,
		Cost:            cost,
	}
}

// IsActive reports whether the rental still holds its car.
func (r *Rental) IsActive() bool {
	return r.Status == RentalActive
}

// ExpiresAt is the end of the paid time.
func (r *Rental) ExpiresAt() time.Time {
	return r.StartedAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Expired reports whether now is past the paid time plus grace.
func (r *Rental) Expired(now time.Time, grace time.Duration) bool {
	return now.After(r.ExpiresAt().Add(grace))
}

// Extend adds paid minutes.
func (r *Rental) Extend(minutes int, cost decimal.Decimal) {
	r.DurationMinutes += minutes
	r.ExtendedMinutes += minutes
	r.Cost = r.Cost.Add(cost)
}

// Clone returns a deep copy.
func (r *Rental) Clone() *Rental {
	c := *r
	c.EndedAt = clonePtr(r.EndedAt)
	c.IssueReport = clonePtr(r.IssueReport)
	c.Rating = clonePtr(r.Rating)
	c.Feedback = clonePtr(r.Feedback)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr.To(*p)
}
