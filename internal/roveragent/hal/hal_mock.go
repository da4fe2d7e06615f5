package hal

import (
	"sync"

	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/roveragent/core"
	"github.com/autopeer-io/roverhub/pkg/log"
)

const (
	mockSignal  = -40
	mockCPUTemp = 45.0
)

var _ core.HAL = (*MockHAL)(nil)

// State is a snapshot of what the mock believes the hardware is doing.
type State struct {
	Direction protocol.Direction // empty when halted
	StreamID  string             // empty when not streaming
	Camera    string
	Battery   int
}

// MockHAL logs every action instead of touching GPIO. The battery drains one
// point per telemetry sample taken while driving.
type MockHAL struct {
	mu    sync.Mutex
	state State

	// cpuTemp reads the board temperature; a nil func or a failed read
	// reports a fixed value.
	cpuTemp func() (float64, bool)
}

func NewMockHAL() *MockHAL {
	return &MockHAL{state: State{Battery: 100}}
}

// NewHAL returns the HAL for this platform.
func NewHAL() core.HAL {
	h := NewMockHAL()
	h.cpuTemp = readCPUTemp
	return h
}

func (h *MockHAL) Drive(d protocol.Direction) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.Direction = d
	log.Info("[HAL-Mock] Driving", "direction", string(d))
	return nil
}

func (h *MockHAL) Halt() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Direction != "" {
		log.Info("[HAL-Mock] Motors stopped")
	}
	h.state.Direction = ""
	return nil
}

func (h *MockHAL) Camera(action string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.Camera = action
	log.Info("[HAL-Mock] Moving camera", "action", action)
	return nil
}

func (h *MockHAL) StartStream(streamID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.StreamID != "" {
		log.Info("[HAL-Mock] Replacing video stream", "old", h.state.StreamID)
	}
	h.state.StreamID = streamID
	log.Info("[HAL-Mock] Pushing video", "streamID", streamID)
	return nil
}

func (h *MockHAL) StopStream() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.StreamID != "" {
		log.Info("[HAL-Mock] Video stopped", "streamID", h.state.StreamID)
	}
	h.state.StreamID = ""
	return nil
}

func (h *MockHAL) Telemetry() protocol.Telemetry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Direction != "" && h.state.Battery > 0 {
		h.state.Battery--
	}

	temp := mockCPUTemp
	if h.cpuTemp != nil {
		if t, ok := h.cpuTemp(); ok {
			temp = t
		}
	}

	return protocol.Telemetry{
		Battery: h.state.Battery,
		Signal:  mockSignal,
		CPUTemp: temp,
	}
}

func (h *MockHAL) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
