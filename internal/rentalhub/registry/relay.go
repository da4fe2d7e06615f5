package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/pkg/metrics"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/pkg/log"
)

var _ core.Notifier = (*Relay)(nil)

// Relay moves messages between the links of a Registry and keeps car presence
// and telemetry in the store.
type Relay struct {
	reg    *Registry
	store  core.Store
	logger log.Logger
}

func NewRelay(reg *Registry, store core.Store, logger log.Logger) *Relay {
	return &Relay{reg: reg, store: store, logger: logger}
}

func (r *Relay) Registry() *Registry {
	return r.reg
}

// SendCommand hands cmd to the vehicle link of deviceID. It never blocks: a
// missing link or a full queue is reported as Offline.
func (r *Relay) SendCommand(deviceID string, cmd protocol.Command) protocol.Delivery {
	delivery := protocol.Offline
	if c, ok := r.reg.Vehicle(deviceID); ok {
		if err := c.Send([]byte(cmd.Encode())); err == nil {
			delivery = protocol.Delivered
		} else {
			r.logger.Debug("Vehicle send failed", "device", deviceID, "error", err.Error())
		}
	}

	metrics.CommandsRelayed.WithLabelValues(delivery.String(), cmd.Kind()).Inc()
	return delivery
}

// ReleaseController unbinds the controller of carID, telling it why.
func (r *Relay) ReleaseController(carID uuid.UUID, reason string) {
	c, ok := r.reg.TakeController(carID)
	if !ok {
		return
	}
	r.logger.Info("Releasing controller", "car", carID, "conn", c.ID(), "reason", reason)
	terminate(c, carID, reason)
}

// HandleControl relays one text frame from the controller c of car. The
// returned ack is empty when the command was delivered. Frames from a link
// that is no longer the car's controller are dropped.
func (r *Relay) HandleControl(car *model.Car, c Conn, text string) string {
	if !r.reg.IsController(car.ID, c) {
		return ""
	}

	cmd, err := protocol.ParseCommand(text)
	if err != nil || !protocol.IsControl(cmd) {
		return protocol.AckInvalid
	}
	if r.SendCommand(car.DeviceID, cmd) == protocol.Offline {
		return protocol.AckOffline
	}
	return ""
}

// BroadcastStatusUpdate sends the fleet state to every observer. Observers
// that cannot take the message are dropped.
func (r *Relay) BroadcastStatusUpdate(ctx context.Context) {
	observers := r.reg.Observers()
	if len(observers) == 0 {
		return
	}

	msg, err := r.statusUpdate(ctx)
	if err != nil {
		r.logger.Error(err, "Failed to build status update")
		return
	}
	r.fanOut(observers, msg)
}

func (r *Relay) statusUpdate(ctx context.Context) ([]byte, error) {
	var cars []*model.Car
	if err := r.store.Tx(ctx, func(tx core.Tx) error {
		var err error
		cars, err = tx.ListCars(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	online := r.reg.OnlineDevices()
	isOnline := make(map[string]bool, len(online))
	for _, id := range online {
		isOnline[id] = true
	}

	states := make([]protocol.CarState, 0, len(cars))
	for _, c := range cars {
		states = append(states, protocol.CarState{
			ID:       c.ID.String(),
			Name:     c.Name,
			DeviceID: c.DeviceID,
			Status:   string(c.Status),
			Battery:  c.BatteryLevel,
			Signal:   c.SignalStrength,
			Online:   isOnline[c.DeviceID],
		})
	}
	return protocol.Marshal(protocol.NewStatusUpdate(online, states)), nil
}

// PublishTelemetry stores the readings of a known device and forwards them to
// observers. Frames from unknown devices are dropped.
func (r *Relay) PublishTelemetry(ctx context.Context, deviceID string, t protocol.Telemetry) error {
	t = t.Normalize()

	var known bool
	if err := r.store.Tx(ctx, func(tx core.Tx) error {
		var err error
		known, err = tx.UpdateCarTelemetry(ctx, deviceID, t.Battery, t.Signal)
		return err
	}); err != nil {
		return err
	}
	if !known {
		r.logger.Debug("Telemetry from unknown device", "device", deviceID)
		return nil
	}

	metrics.TelemetryFrames.Inc()
	r.fanOut(r.reg.Observers(), protocol.Marshal(protocol.NewTelemetryEvent(deviceID, t)))
	return nil
}

// HandleDeviceMessage decodes a frame received from a vehicle.
func (r *Relay) HandleDeviceMessage(ctx context.Context, deviceID string, data []byte) error {
	msg, err := protocol.DecodeDeviceMessage(data)
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case protocol.Telemetry:
		return r.PublishTelemetry(ctx, deviceID, m)
	case protocol.Ignored:
		r.logger.Debug("Ignoring device message", "device", deviceID, "type", m.Type)
	}
	return nil
}

// VehicleConnected binds c as the link of deviceID and brings an offline car
// back to free. It returns ErrNotFound for a device no car is registered with.
func (r *Relay) VehicleConnected(ctx context.Context, deviceID string, c Conn) error {
	// Bind before touching the car so ReconcilePresence never sees a free car
	// without its link.
	r.reg.BindVehicle(deviceID, c)
	if err := r.setPresence(ctx, deviceID, model.CarOffline, model.CarFree); err != nil {
		r.reg.UnbindVehicle(deviceID, c)
		return err
	}
	r.logger.Info("Vehicle connected", "device", deviceID, "conn", c.ID())

	r.BroadcastStatusUpdate(ctx)
	return nil
}

// VehicleDisconnected unbinds c. A free car goes offline; a busy car is left
// to its rental and the monitor.
func (r *Relay) VehicleDisconnected(ctx context.Context, deviceID string, c Conn) {
	if !r.reg.UnbindVehicle(deviceID, c) {
		return
	}
	r.logger.Info("Vehicle disconnected", "device", deviceID, "conn", c.ID())

	if err := r.setPresence(ctx, deviceID, model.CarFree, model.CarOffline); err != nil {
		r.logger.Error(err, "Failed to mark car offline", "device", deviceID)
	}
	r.BroadcastStatusUpdate(ctx)
}

// ReconcilePresence moves the car of deviceID from free to offline when no
// vehicle link is bound. A link bound meanwhile brings the car back.
func (r *Relay) ReconcilePresence(ctx context.Context, deviceID string) {
	if _, ok := r.reg.Vehicle(deviceID); ok {
		return
	}
	if err := r.setPresence(ctx, deviceID, model.CarFree, model.CarOffline); err != nil {
		r.logger.Error(err, "Failed to mark car offline", "device", deviceID)
		return
	}
	if _, ok := r.reg.Vehicle(deviceID); ok {
		if err := r.setPresence(ctx, deviceID, model.CarOffline, model.CarFree); err != nil {
			r.logger.Error(err, "Failed to mark car free", "device", deviceID)
		}
	}
}

func (r *Relay) setPresence(ctx context.Context, deviceID string, from, to model.CarStatus) error {
	return r.store.Tx(ctx, func(tx core.Tx) error {
		car, err := tx.GetCarByDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		changed, err := tx.TransitionCar(ctx, car.ID, from, to)
		if changed {
			r.logger.Debug("Car presence changed", "car", car.ID, "from", from, "to", to)
		}
		return err
	})
}

// AddObserver registers c and sends it the current status.
func (r *Relay) AddObserver(ctx context.Context, c Conn) {
	r.reg.AddObserver(c)

	msg, err := r.statusUpdate(ctx)
	if err != nil {
		r.logger.Error(err, "Failed to build status update")
		return
	}
	r.fanOut([]Conn{c}, msg)
}

func (r *Relay) RemoveObserver(c Conn) {
	r.reg.RemoveObserver(c)
}

func (r *Relay) fanOut(observers []Conn, msg []byte) {
	for _, o := range observers {
		if err := o.Send(msg); err != nil {
			if !errors.Is(err, ErrClosed) {
				r.logger.Debug("Dropping slow observer", "conn", o.ID(), "error", err.Error())
			}
			r.reg.RemoveObserver(o)
			o.Close("observer send failed")
		}
	}
}
