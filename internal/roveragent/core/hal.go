// Package core holds the ports of the rover agent.
package core

import (
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

// HAL is the hardware abstraction the agent drives. Implementations must be
// safe for use by the command loop and the telemetry loop at the same time.
type HAL interface {
	// Drive keeps the motors turning in d until the next Drive or Halt.
	Drive(d protocol.Direction) error
	Halt() error

	// Camera moves the camera servo, e.g. "up" or "left".
	Camera(action string) error

	// StartStream pushes video to the given stream id, replacing any
	// running stream.
	StartStream(streamID string) error
	StopStream() error

	// Telemetry samples the current health readings.
	Telemetry() protocol.Telemetry
}
