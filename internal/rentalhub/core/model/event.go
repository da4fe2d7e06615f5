package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventRentalStarted  EventType = "rental.started"
	EventRentalExtended EventType = "rental.extended"
	EventRentalStopped  EventType = "rental.stopped"
	EventRentalExpired  EventType = "rental.expired"
	EventOrphanRepaired EventType = "car.orphan_repaired"
)

// Event is emitted after a committed state change.
type Event struct {
	Type     EventType       `json:"type"`
	RentalID uuid.UUID       `json:"rental_id,omitempty"`
	CarID    uuid.UUID       `json:"car_id"`
	UserID   uuid.UUID       `json:"user_id,omitempty"`
	Minutes  int             `json:"minutes,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	EndedBy  EndedBy         `json:"ended_by,omitempty"`
	At       time.Time       `json:"at"`
}

// Key is the partitioning key: events of one car stay ordered.
func (e Event) Key() string {
	return e.CarID.String()
}
