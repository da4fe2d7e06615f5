package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
)

func TestMockHALTracksState(t *testing.T) {
	h := NewMockHAL()

	assert.NoError(t, h.Drive(protocol.Left))
	assert.NoError(t, h.Camera("up"))
	assert.NoError(t, h.StartStream("abc"))
	assert.Equal(t, State{Direction: protocol.Left, StreamID: "abc", Camera: "up", Battery: 100}, h.State())

	assert.NoError(t, h.Halt())
	assert.NoError(t, h.StopStream())
	assert.Equal(t, State{Camera: "up", Battery: 100}, h.State())
}

func TestMockHALTelemetry(t *testing.T) {
	h := NewMockHAL()

	assert.Equal(t, protocol.Telemetry{Battery: 100, Signal: -40, CPUTemp: 45}, h.Telemetry())

	_ = h.Drive(protocol.Forward)
	assert.Equal(t, 99, h.Telemetry().Battery)
	assert.Equal(t, 98, h.Telemetry().Battery)

	_ = h.Halt()
	assert.Equal(t, 98, h.Telemetry().Battery)

	h.cpuTemp = func() (float64, bool) { return 61.5, true }
	assert.Equal(t, 61.5, h.Telemetry().CPUTemp)

	h.cpuTemp = func() (float64, bool) { return 0, false }
	assert.Equal(t, 45.0, h.Telemetry().CPUTemp)
}
