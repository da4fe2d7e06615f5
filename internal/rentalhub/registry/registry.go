// Package registry tracks the live links of the hub and relays traffic
// between them.
//
// There is at most one vehicle link per device and one controller link per
// car; a newer link replaces the older one. Observers are unbounded. The
// registry lock only guards the maps: sends and closes happen after it is
// released.
package registry

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/pkg/metrics"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

// Role labels a link for metrics and logs.
type Role string

const (
	RoleVehicle    Role = "vehicle"
	RoleController Role = "controller"
	RoleObserver   Role = "observer"
)

type Registry struct {
	mu          sync.RWMutex
	vehicles    map[string]Conn
	controllers map[uuid.UUID]Conn
	observers   map[string]Conn
}

func New() *Registry {
	return &Registry{
		vehicles:    map[string]Conn{},
		controllers: map[uuid.UUID]Conn{},
		observers:   map[string]Conn{},
	}
}

// BindVehicle makes c the link of deviceID and closes the link it replaces.
func (r *Registry) BindVehicle(deviceID string, c Conn) {
	r.mu.Lock()
	prev := r.vehicles[deviceID]
	r.vehicles[deviceID] = c
	r.updateGauges()
	r.mu.Unlock()

	if prev != nil && prev.ID() != c.ID() {
		prev.Close("replaced by a newer connection")
	}
}

// UnbindVehicle removes c if it is still the link of deviceID. It reports
// false for a link that was already replaced.
func (r *Registry) UnbindVehicle(deviceID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.vehicles[deviceID]
	if !ok || cur.ID() != c.ID() {
		return false
	}
	delete(r.vehicles, deviceID)
	r.updateGauges()
	return true
}

func (r *Registry) Vehicle(deviceID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.vehicles[deviceID]
	return c, ok
}

// OnlineDevices returns the device ids with a live link, sorted.
func (r *Registry) OnlineDevices() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.vehicles))
	for id := range r.vehicles {
		out = append(out, id)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}

// BindController makes c the controller of carID. The superseded controller,
// if any, gets a session_terminated notice and is closed.
func (r *Registry) BindController(carID uuid.UUID, c Conn) {
	r.mu.Lock()
	prev := r.controllers[carID]
	r.controllers[carID] = c
	r.updateGauges()
	r.mu.Unlock()

	if prev != nil && prev.ID() != c.ID() {
		terminate(prev, carID, protocol.ReasonSuperseded)
	}
}

// UnbindController removes c if it is still the controller of carID.
func (r *Registry) UnbindController(carID uuid.UUID, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.controllers[carID]
	if !ok || cur.ID() != c.ID() {
		return false
	}
	delete(r.controllers, carID)
	r.updateGauges()
	return true
}

// TakeController removes and returns the controller of carID.
func (r *Registry) TakeController(carID uuid.UUID) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[carID]
	if ok {
		delete(r.controllers, carID)
		r.updateGauges()
	}
	return c, ok
}

// IsController reports whether c is the current controller of carID.
func (r *Registry) IsController(carID uuid.UUID, c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.controllers[carID]
	return ok && cur.ID() == c.ID()
}

func (r *Registry) AddObserver(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[c.ID()] = c
	r.updateGauges()
}

func (r *Registry) RemoveObserver(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, c.ID())
	r.updateGauges()
}

// Observers returns a snapshot of the observer links.
func (r *Registry) Observers() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.observers))
	for _, c := range r.observers {
		out = append(out, c)
	}
	return out
}

// Count returns the number of links of a role.
func (r *Registry) Count(role Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(role)
}

func (r *Registry) countLocked(role Role) int {
	switch role {
	case RoleVehicle:
		return len(r.vehicles)
	case RoleController:
		return len(r.controllers)
	case RoleObserver:
		return len(r.observers)
	}
	return 0
}

func (r *Registry) updateGauges() {
	for _, role := range []Role{RoleVehicle, RoleController, RoleObserver} {
		metrics.Connections.WithLabelValues(string(role)).Set(float64(r.countLocked(role)))
	}
}

// terminate sends the session_terminated notice and closes c.
func terminate(c Conn, carID uuid.UUID, reason string) {
	_ = c.Send(protocol.Marshal(protocol.NewSessionTerminated(carID.String(), reason)))
	c.Close(reason)
}
