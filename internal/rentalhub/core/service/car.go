package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

// ListCars returns the fleet ordered by name.
func (s *Service) ListCars(ctx context.Context) ([]*model.Car, error) {
	var cars []*model.Car
	err := s.store.Tx(ctx, func(tx core.Tx) error {
		var err error
		cars, err = tx.ListCars(ctx)
		return err
	})
	if cars == nil && err == nil {
		cars = []*model.Car{}
	}
	return cars, err
}

// AuthorizeControl decides whether the caller may open a controller link to
// carID. Renters need an active, unexpired rental of that car; admins are
// always let through. The car is returned so the caller can address its device.
func (s *Service) AuthorizeControl(ctx context.Context, caller model.Caller, carID uuid.UUID) (*model.Car, error) {
	var car *model.Car
	err := s.store.Tx(ctx, func(tx core.Tx) error {
		c, err := tx.LockCar(ctx, carID)
		if err != nil {
			return err
		}
		car = c

		if caller.Admin {
			return nil
		}

		r, err := tx.ActiveRentalForCar(ctx, carID)
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrRentalNotActive.Withf("car %s is not rented", carID)
		}
		if err != nil {
			return err
		}
		if r.UserID != caller.UserID {
			return core.ErrForbidden.Withf("car %s is rented by someone else", carID)
		}
		if r.Expired(s.now(), s.grace) {
			return core.ErrRentalNotActive.Withf("rental %s has expired", r.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return car, nil
}
