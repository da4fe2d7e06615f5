package mqtt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	pkgmqtt "github.com/autopeer-io/roverhub/pkg/mqtt"
)

const (
	commandQoS     = 1
	publishTimeout = 5 * time.Second
)

// vehicleLink is a vehicle reached through the broker. Commands are
// published on the vehicle's command topic in queue order.
type vehicleLink struct {
	*registry.Outbox

	id       string
	deviceID string
}

var _ registry.Conn = (*vehicleLink)(nil)

func newVehicleLink(client pkgmqtt.Client, deviceID, commandTopic string) *vehicleLink {
	l := &vehicleLink{
		id:       "mqtt-" + uuid.NewString(),
		deviceID: deviceID,
	}
	l.Outbox = registry.NewOutbox(registry.DefaultOutboxSize, func(msg []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		return client.Publish(ctx, commandTopic, commandQoS, false, msg)
	}, nil)
	return l
}

func (l *vehicleLink) ID() string { return l.id }
