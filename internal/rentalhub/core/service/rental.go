package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/pkg/metrics"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/lifecycle"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

// StartRental rents a free car for the given minutes.
// Flow:
// 1. Lock the car, then the user.
// 2. Debit price x minutes; nothing changes if the balance is short.
// 3. Mark the car busy and insert the active rental.
// 4. After commit, start the video stream and tell observers.
func (s *Service) StartRental(ctx context.Context, caller model.Caller, carID uuid.UUID, minutes int) (*model.Rental, error) {
	if err := s.checkMinutes(minutes); err != nil {
		return nil, err
	}

	var rental *model.Rental
	err := s.tx(ctx, func(tx core.Tx, fx *lifecycle.Effects) error {
		car, err := tx.LockCar(ctx, carID)
		if err != nil {
			return err
		}
		if car.Status != model.CarFree {
			return core.ErrCarUnavailable.Withf("car %s is %s", car.ID, car.Status)
		}

		if _, err := tx.LockUser(ctx, caller.UserID); err != nil {
			return err
		}

		cost := car.Cost(minutes)
		if err := tx.Debit(ctx, caller.UserID, cost); err != nil {
			return err
		}

		ok, err := tx.TransitionCar(ctx, car.ID, model.CarFree, model.CarBusy)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrCarUnavailable.Withf("car %s is no longer free", car.ID)
		}

		rental = model.NewRental(caller.UserID, car.ID, minutes, cost, s.now())
		if err := tx.CreateRental(ctx, rental); err != nil {
			return err
		}

		fx.Command(car.DeviceID, protocol.StartStream{StreamID: streamID(car)})
		fx.Broadcast()
		fx.Emit(model.Event{
			Type:     model.EventRentalStarted,
			RentalID: rental.ID,
			CarID:    car.ID,
			UserID:   caller.UserID,
			Minutes:  minutes,
			Amount:   cost,
			At:       rental.StartedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RentalsStarted.Inc()
	s.logger.Info("Rental started", "rental", rental.ID, "car", carID, "user", caller.UserID, "minutes", minutes)
	return rental, nil
}

// ExtendRental buys more minutes on an active rental. The owner's balance is
// charged even when an admin extends on their behalf.
func (s *Service) ExtendRental(ctx context.Context, caller model.Caller, rentalID uuid.UUID, minutes int) (*model.Rental, error) {
	if err := s.checkMinutes(minutes); err != nil {
		return nil, err
	}

	var (
		rental  *model.Rental
		expired bool
	)
	err := s.tx(ctx, func(tx core.Tx, fx *lifecycle.Effects) error {
		r, err := tx.LockRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if !r.IsActive() {
			return core.ErrRentalNotActive.Withf("rental %s is %s", r.ID, r.Status)
		}
		if !caller.Owns(r) {
			return core.ErrForbidden
		}

		car, err := tx.LockCar(ctx, r.CarID)
		if err != nil {
			return err
		}

		now := s.now()
		if r.Expired(now, s.grace) {
			expired = true
			return lifecycle.Finish(ctx, tx, r, car, model.EndedBySystem, now, fx)
		}

		if _, err := tx.LockUser(ctx, r.UserID); err != nil {
			return err
		}
		cost := car.Cost(minutes)
		if err := tx.Debit(ctx, r.UserID, cost); err != nil {
			return err
		}

		r.Extend(minutes, cost)
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}

		fx.Emit(model.Event{
			Type:     model.EventRentalExtended,
			RentalID: r.ID,
			CarID:    r.CarID,
			UserID:   r.UserID,
			Minutes:  minutes,
			Amount:   cost,
			At:       now,
		})
		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.logger.Info("Rental expired before extension", "rental", rentalID)
		return nil, core.ErrRentalNotActive.Withf("rental %s has expired", rentalID)
	}

	s.logger.Info("Rental extended", "rental", rental.ID, "minutes", minutes, "total", rental.DurationMinutes)
	return rental, nil
}

// StopRental ends an active rental. The owner completes it; an admin stopping
// someone else's rental cancels it. Nothing is refunded.
func (s *Service) StopRental(ctx context.Context, caller model.Caller, rentalID uuid.UUID) (*model.Rental, error) {
	var rental *model.Rental
	err := s.tx(ctx, func(tx core.Tx, fx *lifecycle.Effects) error {
		r, err := tx.LockRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if !caller.Owns(r) {
			return core.ErrForbidden
		}
		if !r.IsActive() {
			return core.ErrRentalNotActive.Withf("rental %s is %s", r.ID, r.Status)
		}

		car, err := tx.LockCar(ctx, r.CarID)
		if err != nil {
			return err
		}
		if err := lifecycle.Finish(ctx, tx, r, car, caller.EndedBy(r), s.now(), fx); err != nil {
			return err
		}
		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Rental stopped", "rental", rental.ID, "status", rental.Status, "endedBy", rental.EndedBy)
	return rental, nil
}

// GetActiveRental returns the caller's newest unexpired rental, or nil. Every
// active rental found past its expiry is closed on the spot.
func (s *Service) GetActiveRental(ctx context.Context, caller model.Caller) (*model.Rental, error) {
	var rental *model.Rental
	err := s.tx(ctx, func(tx core.Tx, fx *lifecycle.Effects) error {
		active, err := tx.LockActiveRentalsForUser(ctx, caller.UserID)
		if err != nil {
			return err
		}

		now := s.now()
		for _, r := range active {
			if !r.Expired(now, s.grace) {
				if rental == nil {
					rental = r
				}
				continue
			}

			car, err := tx.LockCar(ctx, r.CarID)
			if err != nil {
				return err
			}
			s.logger.Info("Closing expired rental", "rental", r.ID, "expiredAt", r.ExpiresAt())
			if err := lifecycle.Finish(ctx, tx, r, car, model.EndedBySystem, now, fx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rental, nil
}

// streamID falls back to the device id for cars without a configured stream.
func streamID(car *model.Car) string {
	if car.StreamID != "" {
		return car.StreamID
	}
	return car.DeviceID
}
