package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDeviceMessage(t *testing.T) {
	msg, err := DecodeDeviceMessage([]byte(`{"type":"telemetry","battery":85,"rssi":-42,"cpu_temp":45.0}`))
	require.NoError(t, err)
	assert.Equal(t, Telemetry{Battery: 85, Signal: -42, CPUTemp: 45}, msg)

	msg, err = DecodeDeviceMessage([]byte(`{"type":"telemetry","battery":140,"rssi":20}`))
	require.NoError(t, err)
	assert.Equal(t, Telemetry{Battery: 100, Signal: 0}, msg)

	msg, err = DecodeDeviceMessage([]byte(`{"type":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, Ignored{Type: "hello"}, msg)

	_, err = DecodeDeviceMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeTelemetrySignalKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"rssi", `{"type":"telemetry","battery":50,"rssi":-61}`, -61},
		{"signal", `{"type":"telemetry","battery":50,"signal":-73}`, -73},
		{"both", `{"type":"telemetry","battery":50,"signal":-73,"rssi":-61}`, -73},
		{"neither", `{"type":"telemetry","battery":50}`, 0},
		{"signal clamped", `{"type":"telemetry","battery":50,"signal":-300}`, -120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeDeviceMessage([]byte(tt.in))
			require.NoError(t, err)
			require.IsType(t, Telemetry{}, msg)
			assert.Equal(t, tt.want, msg.(Telemetry).Signal)
			assert.Equal(t, 50, msg.(Telemetry).Battery)
		})
	}
}

func TestEncodeTelemetry(t *testing.T) {
	b, err := EncodeTelemetry(Telemetry{Battery: 50, Signal: -60, CPUTemp: 40.5})
	require.NoError(t, err)

	msg, err := DecodeDeviceMessage(b)
	require.NoError(t, err)
	assert.Equal(t, Telemetry{Battery: 50, Signal: -60, CPUTemp: 40.5}, msg)
}

func TestStatusUpdateNeverEncodesNull(t *testing.T) {
	var out map[string]any
	require.NoError(t, json.Unmarshal(Marshal(NewStatusUpdate(nil, nil)), &out))

	assert.Equal(t, "status_update", out["type"])
	assert.Equal(t, []any{}, out["online_cars"])
	assert.Equal(t, []any{}, out["cars"])
}

func TestPresence(t *testing.T) {
	p, err := DecodePresence(EncodePresence(true))
	require.NoError(t, err)
	assert.True(t, p.Online)

	p, err = DecodePresence([]byte(`{"online":false}`))
	require.NoError(t, err)
	assert.False(t, p.Online)

	_, err = DecodePresence([]byte(`online`))
	assert.Error(t, err)
}
