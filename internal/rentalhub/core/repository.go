package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

// Store is the persisted User/Car/Rental state.
type Store interface {
	// Tx runs fn in one transaction. A non-nil error from fn, or a panic,
	// rolls everything back; otherwise the transaction commits.
	Tx(ctx context.Context, fn func(tx Tx) error) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	Close()
}

// Tx is the set of operations available inside a transaction. Lock* methods
// hold the row until the transaction ends.
type Tx interface {
	CarRepository
	UserRepository
	RentalRepository
}

type CarRepository interface {
	// LockCar returns ErrNotFound for an unknown id.
	LockCar(ctx context.Context, id uuid.UUID) (*model.Car, error)
	GetCarByDevice(ctx context.Context, deviceID string) (*model.Car, error)
	ListCars(ctx context.Context) ([]*model.Car, error)

	// LockBusyCars returns every busy car, locked.
	LockBusyCars(ctx context.Context) ([]*model.Car, error)

	// TransitionCar moves a car from one status to another. It reports false,
	// without error, when the car was not in the from status.
	TransitionCar(ctx context.Context, id uuid.UUID, from, to model.CarStatus) (bool, error)

	// UpdateCarTelemetry stores the latest battery and signal readings. It
	// reports false for an unknown device.
	UpdateCarTelemetry(ctx context.Context, deviceID string, battery, signal int) (bool, error)
}

type UserRepository interface {
	LockUser(ctx context.Context, id uuid.UUID) (*model.User, error)

	// Debit subtracts amount from the balance. It returns ErrInsufficientFunds,
	// changing nothing, if the balance would go negative.
	Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type RentalRepository interface {
	// CreateRental returns ErrCarUnavailable if the car already has an active rental.
	CreateRental(ctx context.Context, r *model.Rental) error
	LockRental(ctx context.Context, id uuid.UUID) (*model.Rental, error)

	// LockActiveRentals returns every active rental, locked.
	LockActiveRentals(ctx context.Context) ([]*model.Rental, error)

	// LockActiveRentalsForUser returns every active rental of a user, newest
	// first, locked.
	LockActiveRentalsForUser(ctx context.Context, userID uuid.UUID) ([]*model.Rental, error)

	// ActiveRentalForCar returns ErrNotFound if the car has no active rental.
	ActiveRentalForCar(ctx context.Context, carID uuid.UUID) (*model.Rental, error)

	ListRentalsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Rental, error)

	// UpdateRental writes the mutable billing and feedback fields of an active
	// or closed rental. Status changes go through CloseRental.
	UpdateRental(ctx context.Context, r *model.Rental) error

	// CloseRental persists a terminal status. It reports false when the stored
	// rental was no longer active.
	CloseRental(ctx context.Context, r *model.Rental) (bool, error)
}
