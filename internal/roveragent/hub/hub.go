// Package hub is the agent's side of the MQTT link to roverhub.
package hub

import (
	"context"
	"time"

	"github.com/autopeer-io/roverhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/roverhub/pkg/mqtt/topic"
)

const stopTimeout = 5 * time.Second

// CommandHandler receives the raw text of one command.
type CommandHandler func(ctx context.Context, text string)

type Hub struct {
	deviceID string

	mc     mqtt.Client
	topics *mqtttopic.Builder
}

func New(deviceID string, client mqtt.Client, topics *mqtttopic.Builder) *Hub {
	return &Hub{
		deviceID: deviceID,
		mc:       client,
		topics:   topics,
	}
}

// Start connects and subscribes to this device's command topic.
func (h *Hub) Start(ctx context.Context, onCommand CommandHandler) error {
	if err := h.mc.Start(ctx); err != nil {
		return err
	}

	if err := h.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	return h.mc.Subscribe(ctx, h.topics.Build(paths.Command, h.deviceID), 1,
		func(c context.Context, _ string, payload []byte) {
			onCommand(c, string(payload))
		})
}

// SendPresence replaces the retained presence flag of this device.
func (h *Hub) SendPresence(ctx context.Context, online bool) error {
	return h.mc.Publish(ctx, h.topics.Build(paths.Online, h.deviceID), 1, true, protocol.EncodePresence(online))
}

// SendTelemetry publishes one sample. Samples are not retained; a stale
// reading is worse than none.
func (h *Hub) SendTelemetry(ctx context.Context, t protocol.Telemetry) error {
	payload, err := protocol.EncodeTelemetry(t)
	if err != nil {
		return err
	}
	return h.mc.Publish(ctx, h.topics.Build(paths.Telemetry, h.deviceID), 0, false, payload)
}

// Stop announces the device offline and disconnects. A clean DISCONNECT
// suppresses the will, so the offline flag is published here.
func (h *Hub) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := h.SendPresence(ctx, false); err != nil {
		log.Warn("Failed to announce offline", "error", err.Error())
	}

	log.Info("Disconnecting MQTT client...")
	h.mc.Disconnect(ctx)
}
