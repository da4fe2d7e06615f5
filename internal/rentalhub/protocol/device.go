package protocol

import (
	"encoding/json"
	"fmt"

	"k8s.io/utils/ptr"
)

const typeTelemetry = "telemetry"

// DeviceMessage is something a vehicle sent upstream: Telemetry or Ignored.
type DeviceMessage interface {
	deviceMessage()
}

// Telemetry is the periodic health report of a vehicle. The signal strength
// is encoded as rssi; decoding also accepts signal, which wins when both are
// present.
type Telemetry struct {
	Battery int     `json:"battery"`
	Signal  int     `json:"rssi"`
	CPUTemp float64 `json:"cpu_temp"`
}

// Ignored stands for a well-formed message this hub does not act on.
type Ignored struct {
	Type string
}

func (Telemetry) deviceMessage() {}
func (Ignored) deviceMessage()   {}

// Normalize clamps the battery to 0..100 and the signal to the dBm range a
// radio can report.
func (t Telemetry) Normalize() Telemetry {
	t.Battery = clamp(t.Battery, 0, 100)
	t.Signal = clamp(t.Signal, -120, 0)
	return t
}

// DecodeDeviceMessage parses a JSON frame from a vehicle. Frames with an
// unknown type come back as Ignored; only malformed JSON is an error.
func DecodeDeviceMessage(data []byte) (DeviceMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode device message: %w", err)
	}

	if envelope.Type != typeTelemetry {
		return Ignored{Type: envelope.Type}, nil
	}

	var w struct {
		Battery int     `json:"battery"`
		Signal  *int    `json:"signal"`
		RSSI    *int    `json:"rssi"`
		CPUTemp float64 `json:"cpu_temp"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	t := Telemetry{
		Battery: w.Battery,
		Signal:  ptr.Deref(w.Signal, ptr.Deref(w.RSSI, 0)),
		CPUTemp: w.CPUTemp,
	}
	return t.Normalize(), nil
}

// EncodeTelemetry produces the frame a vehicle sends.
func EncodeTelemetry(t Telemetry) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Telemetry
	}{Type: typeTelemetry, Telemetry: t})
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Presence is the retained flag a vehicle keeps on its online topic. The
// broker publishes Online=false as the will when the vehicle drops off.
type Presence struct {
	Online bool `json:"online"`
}

func EncodePresence(online bool) []byte {
	b, _ := json.Marshal(Presence{Online: online})
	return b
}

func DecodePresence(data []byte) (Presence, error) {
	var p Presence
	if err := json.Unmarshal(data, &p); err != nil {
		return Presence{}, fmt.Errorf("decode presence: %w", err)
	}
	return p, nil
}
