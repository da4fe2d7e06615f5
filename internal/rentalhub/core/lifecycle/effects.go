package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/pkg/metrics"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/pkg/log"
)

type deviceCommand struct {
	deviceID string
	cmd      protocol.Command
}

type release struct {
	carID  uuid.UUID
	reason string
}

// Effects collects what has to reach vehicles, controllers and observers once
// a transaction commits. Nothing is sent while rows are locked.
type Effects struct {
	commands  []deviceCommand
	releases  []release
	events    []model.Event
	ended     []string
	freed     []string
	broadcast bool
}

func (e *Effects) Command(deviceID string, cmd protocol.Command) {
	e.commands = append(e.commands, deviceCommand{deviceID: deviceID, cmd: cmd})
}

func (e *Effects) Release(carID uuid.UUID, reason string) {
	e.releases = append(e.releases, release{carID: carID, reason: reason})
}

func (e *Effects) Emit(ev model.Event) {
	e.events = append(e.events, ev)
}

// Freed records a device whose car went back to free.
func (e *Effects) Freed(deviceID string) {
	e.freed = append(e.freed, deviceID)
}

// Broadcast asks for one status update, however many times it is called.
func (e *Effects) Broadcast() {
	e.broadcast = true
}

// Empty reports whether Apply would do nothing.
func (e *Effects) Empty() bool {
	return len(e.commands) == 0 && len(e.releases) == 0 && len(e.events) == 0 && len(e.freed) == 0 && !e.broadcast
}

// Apply delivers the collected effects. Delivery is best effort: an offline
// vehicle or a failing publisher is logged and skipped.
func (e *Effects) Apply(ctx context.Context, n core.Notifier, p core.EventPublisher, logger log.Logger) {
	for _, c := range e.commands {
		if n.SendCommand(c.deviceID, c.cmd) == protocol.Offline {
			logger.Warn("Car offline, command dropped", "device", c.deviceID, "command", c.cmd.Encode())
		}
	}

	for _, r := range e.releases {
		n.ReleaseController(r.carID, r.reason)
	}

	for _, reason := range e.ended {
		metrics.RentalsEnded.WithLabelValues(reason).Inc()
	}

	for _, d := range e.freed {
		n.ReconcilePresence(ctx, d)
	}

	if e.broadcast {
		n.BroadcastStatusUpdate(ctx)
	}

	for _, ev := range e.events {
		if err := p.Publish(ctx, ev); err != nil {
			logger.Error(err, "Failed to publish rental event", "type", ev.Type, "rental", ev.RentalID)
		}
	}
}

// Finish closes r, frees car and records the follow-ups: stop the stream,
// release the controller, broadcast and emit an event. r is updated in place.
// It returns ErrRentalNotActive when the rental was closed concurrently.
func Finish(ctx context.Context, tx core.Tx, r *model.Rental, car *model.Car, by model.EndedBy, at time.Time, fx *Effects) error {
	if err := Close(ctx, r, by, at); err != nil {
		return err
	}

	ok, err := tx.CloseRental(ctx, r)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrRentalNotActive.Withf("rental %s was closed concurrently", r.ID)
	}

	// A car already moved away from busy is left alone.
	freed, err := tx.TransitionCar(ctx, car.ID, model.CarBusy, model.CarFree)
	if err != nil {
		return err
	}
	if freed {
		fx.Freed(car.DeviceID)
	}

	eventType, reason, ended := model.EventRentalStopped, protocol.ReasonRentalEnded, "stopped"
	switch {
	case by == model.EndedBySystem:
		eventType, reason, ended = model.EventRentalExpired, protocol.ReasonExpired, "expired"
	case r.Status == model.RentalCancelled:
		ended = "cancelled"
	}

	fx.Command(car.DeviceID, protocol.StopStream{})
	fx.Release(car.ID, reason)
	fx.Broadcast()
	fx.ended = append(fx.ended, ended)
	fx.Emit(model.Event{
		Type:     eventType,
		RentalID: r.ID,
		CarID:    car.ID,
		UserID:   r.UserID,
		Amount:   r.Cost,
		EndedBy:  by,
		At:       at,
	})
	return nil
}
