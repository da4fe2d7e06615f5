package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

// Notifier pushes committed state changes out to connected vehicles and browsers.
// None of its methods block on the network.
type Notifier interface {
	SendCommand(deviceID string, cmd protocol.Command) protocol.Delivery

	// ReleaseController tells the controller of carID why its session ended and
	// closes the link. It is a no-op when no controller is bound.
	ReleaseController(carID uuid.UUID, reason string)

	BroadcastStatusUpdate(ctx context.Context)

	// ReconcilePresence takes a just freed car offline when its vehicle has
	// no link.
	ReconcilePresence(ctx context.Context, deviceID string)
}

// EventPublisher forwards lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}
