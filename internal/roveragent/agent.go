// Package roveragent runs on a vehicle: it keeps the vehicle's presence and
// telemetry on the broker and executes the commands roverhub relays to it.
package roveragent

import (
	"context"
	"time"

	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/roveragent/core"
	"github.com/autopeer-io/roverhub/internal/roveragent/hub"
	"github.com/autopeer-io/roverhub/pkg/log"
)

type Agent struct {
	deviceID string
	hal      core.HAL
	hub      *hub.Hub

	interval time.Duration
}

func NewAgent(deviceID string, hal core.HAL, hub *hub.Hub, interval time.Duration) *Agent {
	return &Agent{
		deviceID: deviceID,
		hal:      hal,
		hub:      hub,
		interval: interval,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting rover-agent", "deviceID", a.deviceID)

	if err := a.hub.Start(ctx, a.handleCommand); err != nil {
		return err
	}
	defer a.hub.Stop()
	defer a.park()

	if err := a.hub.SendPresence(ctx, true); err != nil {
		return err
	}
	log.Info("Announced online")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.report(ctx)

		select {
		case <-ctx.Done():
			log.Info("Agent shutting down...")
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Agent) report(ctx context.Context) {
	if err := a.hub.SendTelemetry(ctx, a.hal.Telemetry()); err != nil && ctx.Err() == nil {
		log.Warn("Failed to send telemetry", "error", err.Error())
	}
}

func (a *Agent) handleCommand(_ context.Context, text string) {
	cmd, err := protocol.ParseCommand(text)
	if err != nil {
		log.Warn("Unknown command", "command", text)
		return
	}

	log.Debug("Executing command", "kind", cmd.Kind())
	if err := a.execute(cmd); err != nil {
		log.Error(err, "Command failed", "kind", cmd.Kind())
	}
}

func (a *Agent) execute(cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.Drive:
		return a.hal.Drive(c.Direction)
	case protocol.Halt:
		return a.hal.Halt()
	case protocol.Camera:
		return a.hal.Camera(c.Action)
	case protocol.StartStream:
		return a.hal.StartStream(c.StreamID)
	case protocol.StopStream:
		return a.hal.StopStream()
	default:
		return nil
	}
}

// park leaves the hardware idle when the agent exits.
func (a *Agent) park() {
	if err := a.hal.Halt(); err != nil {
		log.Error(err, "Failed to stop motors")
	}
	if err := a.hal.StopStream(); err != nil {
		log.Error(err, "Failed to stop video")
	}
}
