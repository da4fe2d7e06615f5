package protocol

import (
	"encoding/json"
)

// Plain-text acknowledgements written back to a controller.
const (
	AckOffline = "Car offline"
	AckInvalid = "Invalid command"
)

// Reasons carried by SessionTerminated.
const (
	ReasonSuperseded  = "superseded"
	ReasonRentalEnded = "rental_ended"
	ReasonExpired     = "rental_expired"
)

// CarState is one row of a status update.
type CarState struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Battery  int    `json:"battery_level"`
	Signal   int    `json:"signal_strength"`
	Online   bool   `json:"online"`
}

// StatusUpdate is pushed to observers whenever the fleet changes.
type StatusUpdate struct {
	Type       string     `json:"type"`
	OnlineCars []string   `json:"online_cars"`
	Cars       []CarState `json:"cars"`
}

// TelemetryEvent is pushed to observers for every accepted telemetry frame.
type TelemetryEvent struct {
	Type     string  `json:"type"`
	DeviceID string  `json:"device_id"`
	Battery  int     `json:"battery_level"`
	Signal   int     `json:"signal_strength"`
	CPUTemp  float64 `json:"cpu_temp"`
}

// SessionTerminated is the last message a controller gets before its link is closed.
type SessionTerminated struct {
	Type   string `json:"type"`
	CarID  string `json:"car_id"`
	Reason string `json:"reason"`
}

func NewStatusUpdate(online []string, cars []CarState) StatusUpdate {
	if online == nil {
		online = []string{}
	}
	if cars == nil {
		cars = []CarState{}
	}
	return StatusUpdate{Type: "status_update", OnlineCars: online, Cars: cars}
}

func NewTelemetryEvent(deviceID string, t Telemetry) TelemetryEvent {
	return TelemetryEvent{
		Type:     "telemetry",
		DeviceID: deviceID,
		Battery:  t.Battery,
		Signal:   t.Signal,
		CPUTemp:  t.CPUTemp,
	}
}

func NewSessionTerminated(carID, reason string) SessionTerminated {
	return SessionTerminated{Type: "session_terminated", CarID: carID, Reason: reason}
}

// Marshal encodes a server to client message. The message types above never
// fail to encode, so the error is dropped.
func Marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
