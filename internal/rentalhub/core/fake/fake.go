// Package fake provides recording implementations of the core ports for tests.
package fake

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

var (
	_ core.Notifier       = (*Notifier)(nil)
	_ core.EventPublisher = (*Publisher)(nil)
)

// Sent is one recorded SendCommand call.
type Sent struct {
	DeviceID string
	Command  string
}

// Notifier records every call. Devices listed in Online get Delivered, the
// rest get Offline.
type Notifier struct {
	mu         sync.Mutex
	online     map[string]bool
	sent       []Sent
	released   map[uuid.UUID]string
	reconciled []string
	broadcasts int
}

func NewNotifier(online ...string) *Notifier {
	n := &Notifier{online: map[string]bool{}, released: map[uuid.UUID]string{}}
	for _, d := range online {
		n.online[d] = true
	}
	return n
}

func (n *Notifier) SendCommand(deviceID string, cmd protocol.Command) protocol.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{DeviceID: deviceID, Command: cmd.Encode()})
	if n.online[deviceID] {
		return protocol.Delivered
	}
	return protocol.Offline
}

func (n *Notifier) ReleaseController(carID uuid.UUID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.released[carID] = reason
}

func (n *Notifier) BroadcastStatusUpdate(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts++
}

func (n *Notifier) ReconcilePresence(_ context.Context, deviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconciled = append(n.reconciled, deviceID)
}

// Reconciled returns the devices ReconcilePresence was called for, in order.
func (n *Notifier) Reconciled() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reconciled...)
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// Released returns the reason a car's controller was released with, if any.
func (n *Notifier) Released(carID uuid.UUID) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	reason, ok := n.released[carID]
	return reason, ok
}

func (n *Notifier) Broadcasts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.broadcasts
}

// Publisher records events.
type Publisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *Publisher) Publish(_ context.Context, ev model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *Publisher) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events...)
}

// Types returns the recorded event types in order.
func (p *Publisher) Types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
