package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CarStatus is the rentability of a car.
type CarStatus string

const (
	// CarFree can be rented.
	CarFree CarStatus = "free"
	// CarBusy has exactly one active rental.
	CarBusy CarStatus = "busy"
	// CarOffline has no live vehicle link and cannot be rented.
	CarOffline CarStatus = "offline"
)

// Car is a rentable vehicle.
type Car struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`

	// DeviceID identifies the onboard controller on the wire.
	DeviceID string `json:"device_id"`

	// StreamID is the video stream the vehicle pushes to while rented.
	StreamID string `json:"stream_id,omitempty"`

	Status         CarStatus       `json:"status"`
	PricePerMinute decimal.Decimal `json:"price_per_minute"`
	BatteryLevel   int             `json:"battery_level"`
	SignalStrength int             `json:"signal_strength"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CostPlaces is the number of decimal places a charge is rounded to.
const CostPlaces = 2

// Cost is the price of renting the car for the given minutes, rounded half
// away from zero to CostPlaces.
func (c *Car) Cost(minutes int) decimal.Decimal {
	return c.PricePerMinute.Mul(decimal.NewFromInt(int64(minutes))).Round(CostPlaces)
}
