package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/fake"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/rentalhub/store/memory"
	"github.com/autopeer-io/roverhub/pkg/log"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memory.Store
	notifier *fake.Notifier
	events   *fake.Publisher
	clock    *clock
	svc      *Service

	car   *model.Car
	user  *model.User
	other *model.User
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.New(),
		notifier: fake.NewNotifier("rpi-1"),
		events:   &fake.Publisher{},
		clock:    &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		car: &model.Car{
			ID:             uuid.New(),
			Name:           "Rover 1",
			DeviceID:       "rpi-1",
			StreamID:       "stream-1",
			Status:         model.CarFree,
			PricePerMinute: decimal.RequireFromString("2.50"),
		},
		user:  &model.User{ID: uuid.New(), Balance: decimal.RequireFromString(balance), Role: model.RoleUser},
		other: &model.User{ID: uuid.New(), Balance: decimal.NewFromInt(100), Role: model.RoleUser},
	}
	f.store.PutCar(f.car)
	f.store.PutUser(f.user)
	f.store.PutUser(f.other)

	f.svc = New(f.store, f.notifier, f.events,
		WithClock(f.clock.Now),
		WithExpiryGrace(10*time.Second),
		WithLogger(log.NewNopLogger()),
	)
	return f
}

func (f *fixture) owner() model.Caller { return model.Caller{UserID: f.user.ID} }

func (f *fixture) start(t *testing.T, minutes int) *model.Rental {
	t.Helper()
	r, err := f.svc.StartRental(context.Background(), f.owner(), f.car.ID, minutes)
	require.NoError(t, err)
	return r
}

func TestStartRental(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)

	assert.Equal(t, model.RentalActive, r.Status)
	assert.Equal(t, f.clock.Now(), r.StartedAt)
	assert.Equal(t, "25", r.Cost.String())
	assert.Equal(t, model.CarBusy, f.store.Car(f.car.ID).Status)
	assert.Equal(t, "75", f.store.User(f.user.ID).Balance.String())

	assert.Equal(t, []fake.Sent{{DeviceID: "rpi-1", Command: "start_stream|stream-1"}}, f.notifier.Sent())
	assert.Equal(t, 1, f.notifier.Broadcasts())
	assert.Equal(t, []model.EventType{model.EventRentalStarted}, f.events.Types())
}

func TestStartRentalErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture) (uuid.UUID, int)
		want    error
	}{
		{
			name:    "unknown car",
			prepare: func(f *fixture) (uuid.UUID, int) { return uuid.New(), 5 },
			want:    core.ErrNotFound,
		},
		{
			name: "offline car",
			prepare: func(f *fixture) (uuid.UUID, int) {
				f.car.Status = model.CarOffline
				f.store.PutCar(f.car)
				return f.car.ID, 5
			},
			want: core.ErrCarUnavailable,
		},
		{
			name:    "zero minutes",
			prepare: func(f *fixture) (uuid.UUID, int) { return f.car.ID, 0 },
			want:    core.ErrInvalidArgument,
		},
		{
			name:    "too many minutes",
			prepare: func(f *fixture) (uuid.UUID, int) { return f.car.ID, DefaultMaxMinutes + 1 },
			want:    core.ErrInvalidArgument,
		},
		{
			name:    "balance short by one cent",
			prepare: func(f *fixture) (uuid.UUID, int) { return f.car.ID, 5 }, // 12.50 against 12.49
			want:    core.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "12.49")
			carID, minutes := tt.prepare(f)
			before := f.store.Car(f.car.ID).Status

			_, err := f.svc.StartRental(context.Background(), f.owner(), carID, minutes)
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, before, f.store.Car(f.car.ID).Status)
			assert.Equal(t, "12.49", f.store.User(f.user.ID).Balance.StringFixed(2))
			assert.Empty(t, f.store.Rentals())
			assert.Empty(t, f.notifier.Sent())
		})
	}
}

func TestConcurrentStartsOneWins(t *testing.T) {
	f := newFixture(t, "1000")

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartRental(context.Background(), f.owner(), f.car.ID, 1)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, core.ErrCarUnavailable)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, f.store.Rentals(), 1)
	assert.Equal(t, "997.5", f.store.User(f.user.ID).Balance.String())
}

func TestExtendRental(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)
	f.clock.Advance(5 * time.Minute)

	got, err := f.svc.ExtendRental(context.Background(), f.owner(), r.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, 14, got.DurationMinutes)
	assert.Equal(t, 4, got.ExtendedMinutes)
	assert.Equal(t, "35", got.Cost.String())
	assert.Equal(t, r.StartedAt.Add(14*time.Minute), got.ExpiresAt())
	assert.Equal(t, "65", f.store.User(f.user.ID).Balance.String())
	assert.Equal(t, model.EventRentalExtended, f.events.Types()[1])
}

func TestExtendClosedRentalDoesNotDebit(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)
	_, err := f.svc.StopRental(context.Background(), f.owner(), r.ID)
	require.NoError(t, err)

	_, err = f.svc.ExtendRental(context.Background(), f.owner(), r.ID, 5)
	assert.ErrorIs(t, err, core.ErrRentalNotActive)
	assert.Equal(t, "75", f.store.User(f.user.ID).Balance.String())
}

func TestExtendExpiredRentalClosesIt(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 5)
	f.clock.Advance(5*time.Minute + 11*time.Second)

	_, err := f.svc.ExtendRental(context.Background(), f.owner(), r.ID, 5)
	assert.ErrorIs(t, err, core.ErrRentalNotActive)

	stored := f.store.Rental(r.ID)
	assert.Equal(t, model.RentalCompleted, stored.Status)
	assert.Equal(t, model.EndedBySystem, stored.EndedBy)
	assert.Equal(t, model.CarFree, f.store.Car(f.car.ID).Status)
	assert.Equal(t, "87.5", f.store.User(f.user.ID).Balance.String())
}

func TestExtendInsufficientFunds(t *testing.T) {
	f := newFixture(t, "30")
	r := f.start(t, 10)

	_, err := f.svc.ExtendRental(context.Background(), f.owner(), r.ID, 3)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	stored := f.store.Rental(r.ID)
	assert.Equal(t, 10, stored.DurationMinutes)
	assert.Equal(t, 0, stored.ExtendedMinutes)
	assert.Equal(t, "5", f.store.User(f.user.ID).Balance.String())
}

func TestExtendForbidden(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)

	_, err := f.svc.ExtendRental(context.Background(), model.Caller{UserID: f.other.ID}, r.ID, 1)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.svc.ExtendRental(context.Background(), model.Caller{UserID: f.other.ID, Admin: true}, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "100", f.store.User(f.other.ID).Balance.String(), "the owner pays")
}

func TestStopRental(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)
	f.clock.Advance(3 * time.Minute)

	got, err := f.svc.StopRental(context.Background(), f.owner(), r.ID)
	require.NoError(t, err)

	assert.Equal(t, model.RentalCompleted, got.Status)
	assert.Equal(t, model.EndedByUser, got.EndedBy)
	assert.Equal(t, f.clock.Now(), *got.EndedAt)
	assert.Equal(t, model.CarFree, f.store.Car(f.car.ID).Status)
	assert.Equal(t, "75", f.store.User(f.user.ID).Balance.String(), "no refund")

	reason, ok := f.notifier.Released(f.car.ID)
	assert.True(t, ok)
	assert.Equal(t, protocol.ReasonRentalEnded, reason)
	assert.Equal(t, "stop_stream", f.notifier.Sent()[1].Command)

	_, err = f.svc.StopRental(context.Background(), f.owner(), r.ID)
	assert.ErrorIs(t, err, core.ErrRentalNotActive)
}

func TestStopRentalByAdminCancels(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 10)

	_, err := f.svc.StopRental(context.Background(), model.Caller{UserID: f.other.ID}, r.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	got, err := f.svc.StopRental(context.Background(), model.Caller{UserID: f.other.ID, Admin: true}, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RentalCancelled, got.Status)
	assert.Equal(t, model.EndedByAdmin, got.EndedBy)
}

func TestStopUnknownRental(t *testing.T) {
	f := newFixture(t, "100")
	_, err := f.svc.StopRental(context.Background(), f.owner(), uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetActiveRental(t *testing.T) {
	f := newFixture(t, "100")

	got, err := f.svc.GetActiveRental(context.Background(), f.owner())
	require.NoError(t, err)
	assert.Nil(t, got)

	r := f.start(t, 5)

	f.clock.Advance(5*time.Minute + 9*time.Second)
	got, err = f.svc.GetActiveRental(context.Background(), f.owner())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)

	f.clock.Advance(2 * time.Second)
	got, err = f.svc.GetActiveRental(context.Background(), f.owner())
	require.NoError(t, err)
	assert.Nil(t, got)

	stored := f.store.Rental(r.ID)
	assert.Equal(t, model.RentalCompleted, stored.Status)
	assert.Equal(t, model.EndedBySystem, stored.EndedBy)
	assert.Equal(t, model.CarFree, f.store.Car(f.car.ID).Status)

	reason, _ := f.notifier.Released(f.car.ID)
	assert.Equal(t, protocol.ReasonExpired, reason)
	assert.Contains(t, f.events.Types(), model.EventRentalExpired)
}

func TestGetActiveRentalClosesEveryExpired(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	now := f.clock.Now()

	second := &model.Car{ID: uuid.New(), Name: "Rover 2", DeviceID: "rpi-2", Status: model.CarBusy, PricePerMinute: decimal.NewFromInt(1)}
	f.store.PutCar(second)
	old := model.NewRental(f.user.ID, second.ID, 5, decimal.NewFromInt(5), now.Add(-time.Hour))
	f.store.PutRental(old)

	current := f.start(t, 30)

	got, err := f.svc.GetActiveRental(ctx, f.owner())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, current.ID, got.ID)

	assert.Equal(t, model.RentalCompleted, f.store.Rental(old.ID).Status)
	assert.Equal(t, model.EndedBySystem, f.store.Rental(old.ID).EndedBy)
	assert.Equal(t, model.CarFree, f.store.Car(second.ID).Status)
	assert.Equal(t, model.RentalActive, f.store.Rental(current.ID).Status)
	assert.Equal(t, model.CarBusy, f.store.Car(f.car.ID).Status)
	assert.Contains(t, f.events.Types(), model.EventRentalExpired)
}

func TestOfflineCarDoesNotBlockStart(t *testing.T) {
	f := newFixture(t, "100")
	f.notifier = fake.NewNotifier()
	f.svc = New(f.store, f.notifier, f.events, WithClock(f.clock.Now), WithLogger(log.NewNopLogger()))

	_, err := f.svc.StartRental(context.Background(), f.owner(), f.car.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CarBusy, f.store.Car(f.car.ID).Status)
}

func TestReportAndFeedback(t *testing.T) {
	f := newFixture(t, "100")
	r := f.start(t, 1)
	ctx := context.Background()

	got, err := f.svc.ReportIssue(ctx, f.owner(), r.ID, "  left wheel squeaks ")
	require.NoError(t, err)
	assert.Equal(t, "left wheel squeaks", *got.IssueReport)

	_, err = f.svc.ReportIssue(ctx, f.owner(), r.ID, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	comment := "fun"
	got, err = f.svc.SubmitFeedback(ctx, f.owner(), r.ID, 5, &comment)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.Rating)
	assert.Equal(t, "left wheel squeaks", *got.IssueReport)

	_, err = f.svc.SubmitFeedback(ctx, f.owner(), r.ID, 6, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = f.svc.SubmitFeedback(ctx, model.Caller{UserID: f.other.ID, Admin: true}, r.ID, 1, nil)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestListMyRentals(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	for range 3 {
		r := f.start(t, 1)
		_, err := f.svc.StopRental(ctx, f.owner(), r.ID)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	all, err := f.svc.ListMyRentals(ctx, f.owner(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all[0].StartedAt.After(all[1].StartedAt))

	page, err := f.svc.ListMyRentals(ctx, f.owner(), 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[2].ID, page[0].ID)

	_, err = f.svc.ListMyRentals(ctx, f.owner(), 1, -1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestAuthorizeControl(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	_, err := f.svc.AuthorizeControl(ctx, f.owner(), f.car.ID)
	assert.ErrorIs(t, err, core.ErrRentalNotActive)

	f.start(t, 5)

	car, err := f.svc.AuthorizeControl(ctx, f.owner(), f.car.ID)
	require.NoError(t, err)
	assert.Equal(t, "rpi-1", car.DeviceID)

	_, err = f.svc.AuthorizeControl(ctx, model.Caller{UserID: f.other.ID}, f.car.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.svc.AuthorizeControl(ctx, model.Caller{UserID: f.other.ID, Admin: true}, f.car.ID)
	assert.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	_, err = f.svc.AuthorizeControl(ctx, f.owner(), f.car.ID)
	assert.ErrorIs(t, err, core.ErrRentalNotActive)
}

func TestListCars(t *testing.T) {
	f := newFixture(t, "0")
	f.store.PutCar(&model.Car{ID: uuid.New(), Name: "A-team", DeviceID: "rpi-0", Status: model.CarOffline})

	cars, err := f.svc.ListCars(context.Background())
	require.NoError(t, err)
	require.Len(t, cars, 2)
	assert.Equal(t, "A-team", cars[0].Name)
}
