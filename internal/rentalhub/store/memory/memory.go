// Package memory is an in-process Store. Transactions are serialized by one
// mutex and rolled back from a snapshot, which gives the same isolation the
// Postgres row locks give for the access patterns of this service.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

var _ core.Store = (*Store)(nil)

type state struct {
	cars    map[uuid.UUID]*model.Car
	users   map[uuid.UUID]*model.User
	rentals map[uuid.UUID]*model.Rental
}

func (s *state) clone() *state {
	c := &state{
		cars:    make(map[uuid.UUID]*model.Car, len(s.cars)),
		users:   make(map[uuid.UUID]*model.User, len(s.users)),
		rentals: make(map[uuid.UUID]*model.Rental, len(s.rentals)),
	}
	for id, car := range s.cars {
		v := *car
		c.cars[id] = &v
	}
	for id, u := range s.users {
		v := *u
		c.users[id] = &v
	}
	for id, r := range s.rentals {
		c.rentals[id] = r.Clone()
	}
	return c
}

// Store keeps everything in maps.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	st  *state
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now: time.Now,
		st: &state{
			cars:    map[uuid.UUID]*model.Car{},
			users:   map[uuid.UUID]*model.User{},
			rentals: map[uuid.UUID]*model.Rental{},
		},
	}
}

// PutCar inserts or replaces a car.
func (s *Store) PutCar(c *model.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *c
	s.st.cars[c.ID] = &v
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *u
	s.st.users[u.ID] = &v
}

// PutRental inserts or replaces a rental without any checks. Tests use it to
// build inconsistent states.
func (s *Store) PutRental(r *model.Rental) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.rentals[r.ID] = r.Clone()
}

// Car returns a copy of a car, or nil.
func (s *Store) Car(id uuid.UUID) *model.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.cars[id]
	if !ok {
		return nil
	}
	v := *c
	return &v
}

// User returns a copy of a user, or nil.
func (s *Store) User(id uuid.UUID) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil
	}
	v := *u
	return &v
}

// Rental returns a copy of a rental, or nil.
func (s *Store) Rental(id uuid.UUID) *model.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.rentals[id]
	if !ok {
		return nil
	}
	return r.Clone()
}

// Rentals returns copies of every rental.
func (s *Store) Rentals() []*model.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Rental, 0, len(s.st.rentals))
	for _, r := range s.st.rentals {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) Tx(ctx context.Context, fn func(tx core.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(&tx{st: s.st, now: s.now})
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) LockCar(_ context.Context, id uuid.UUID) (*model.Car, error) {
	c, ok := t.st.cars[id]
	if !ok {
		return nil, core.ErrNotFound.Withf("car %s not found", id)
	}
	v := *c
	return &v, nil
}

func (t *tx) GetCarByDevice(_ context.Context, deviceID string) (*model.Car, error) {
	for _, c := range t.st.cars {
		if c.DeviceID == deviceID {
			v := *c
			return &v, nil
		}
	}
	return nil, core.ErrNotFound.Withf("no car for device %q", deviceID)
}

func (t *tx) ListCars(context.Context) ([]*model.Car, error) {
	out := make([]*model.Car, 0, len(t.st.cars))
	for _, c := range t.st.cars {
		v := *c
		out = append(out, &v)
	}
	slices.SortFunc(out, func(a, b *model.Car) int { return compareStrings(a.Name, b.Name) })
	return out, nil
}

func (t *tx) LockBusyCars(context.Context) ([]*model.Car, error) {
	var out []*model.Car
	for _, c := range t.st.cars {
		if c.Status == model.CarBusy {
			v := *c
			out = append(out, &v)
		}
	}
	return out, nil
}

func (t *tx) TransitionCar(_ context.Context, id uuid.UUID, from, to model.CarStatus) (bool, error) {
	c, ok := t.st.cars[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = t.now()
	return true, nil
}

func (t *tx) UpdateCarTelemetry(_ context.Context, deviceID string, battery, signal int) (bool, error) {
	for _, c := range t.st.cars {
		if c.DeviceID == deviceID {
			c.BatteryLevel = battery
			c.SignalStrength = signal
			c.UpdatedAt = t.now()
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, core.ErrNotFound.Withf("user %s not found", id)
	}
	v := *u
	return &v, nil
}

func (t *tx) Debit(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	u, ok := t.st.users[id]
	if !ok {
		return core.ErrNotFound.Withf("user %s not found", id)
	}
	if u.Balance.LessThan(amount) {
		return core.ErrInsufficientFunds.Withf("required %s, available %s", amount, u.Balance)
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (t *tx) CreateRental(_ context.Context, r *model.Rental) error {
	if _, ok := t.st.rentals[r.ID]; ok {
		return fmt.Errorf("rental %s already exists", r.ID)
	}
	if r.IsActive() {
		for _, other := range t.st.rentals {
			if other.CarID == r.CarID && other.IsActive() {
				return core.ErrCarUnavailable.Withf("car %s already has an active rental", r.CarID)
			}
		}
	}
	t.st.rentals[r.ID] = r.Clone()
	return nil
}

func (t *tx) LockRental(_ context.Context, id uuid.UUID) (*model.Rental, error) {
	r, ok := t.st.rentals[id]
	if !ok {
		return nil, core.ErrNotFound.Withf("rental %s not found", id)
	}
	return r.Clone(), nil
}

func (t *tx) LockActiveRentals(context.Context) ([]*model.Rental, error) {
	var out []*model.Rental
	for _, r := range t.st.rentals {
		if r.IsActive() {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Rental) int { return a.StartedAt.Compare(b.StartedAt) })
	return out, nil
}

func (t *tx) LockActiveRentalsForUser(_ context.Context, userID uuid.UUID) ([]*model.Rental, error) {
	var out []*model.Rental
	for _, r := range t.st.rentals {
		if r.UserID == userID && r.IsActive() {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Rental) int { return b.StartedAt.Compare(a.StartedAt) })
	return out, nil
}

func (t *tx) ActiveRentalForCar(_ context.Context, carID uuid.UUID) (*model.Rental, error) {
	for _, r := range t.st.rentals {
		if r.CarID == carID && r.IsActive() {
			return r.Clone(), nil
		}
	}
	return nil, core.ErrNotFound.Withf("car %s has no active rental", carID)
}

func (t *tx) ListRentalsByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*model.Rental, error) {
	var all []*model.Rental
	for _, r := range t.st.rentals {
		if r.UserID == userID {
			all = append(all, r.Clone())
		}
	}
	slices.SortFunc(all, func(a, b *model.Rental) int { return b.StartedAt.Compare(a.StartedAt) })

	if offset >= len(all) {
		return []*model.Rental{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (t *tx) UpdateRental(_ context.Context, r *model.Rental) error {
	cur, ok := t.st.rentals[r.ID]
	if !ok {
		return core.ErrNotFound.Withf("rental %s not found", r.ID)
	}
	next := cur.Clone()
	next.DurationMinutes = r.DurationMinutes
	next.ExtendedMinutes = r.ExtendedMinutes
	next.Cost = r.Cost
	next.IssueReport = r.Clone().IssueReport
	next.Rating = r.Clone().Rating
	next.Feedback = r.Clone().Feedback
	t.st.rentals[r.ID] = next
	return nil
}

func (t *tx) CloseRental(_ context.Context, r *model.Rental) (bool, error) {
	cur, ok := t.st.rentals[r.ID]
	if !ok || !cur.IsActive() {
		return false, nil
	}
	next := cur.Clone()
	closed := r.Clone()
	next.Status = closed.Status
	next.EndedAt = closed.EndedAt
	next.EndedBy = closed.EndedBy
	t.st.rentals[r.ID] = next
	return true, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
