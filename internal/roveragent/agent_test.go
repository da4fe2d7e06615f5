package roveragent

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/roveragent/hal"
	"github.com/autopeer-io/roverhub/internal/roveragent/hub"
	"github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/mqtt/topic"
	"github.com/autopeer-io/roverhub/pkg/options"
)

const (
	commandTopic   = "roverhub/v1/command/rpi-1"
	onlineTopic    = "roverhub/v1/online/rpi-1"
	telemetryTopic = "roverhub/v1/telemetry/rpi-1"
)

type published struct {
	topic   string
	retain  bool
	payload string
}

type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []published
	disconnected bool
}

var _ mqtt.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Start(context.Context) error           { return nil }
func (c *fakeClient) AwaitConnection(context.Context) error { return nil }
func (c *fakeClient) IsConnected() bool                     { return true }

func (c *fakeClient) Disconnect(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(_ context.Context, t string, _ int, retain bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: t, retain: retain, payload: string(payload)})
	return nil
}

func (c *fakeClient) Subscribe(_ context.Context, filter string, _ int, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[filter] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(_ context.Context, filter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, filter)
	return nil
}

func (c *fakeClient) on(t string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, p := range c.published {
		if p.topic == t {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeClient) subscribed(t string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[t]
	return ok
}

func (c *fakeClient) send(t, payload string) {
	c.mu.Lock()
	h := c.handlers[t]
	c.mu.Unlock()
	if h != nil {
		h(context.Background(), t, []byte(payload))
	}
}

func startAgent(t *testing.T, interval time.Duration) (*fakeClient, *hal.MockHAL, func()) {
	t.Helper()

	client := newFakeClient()
	h := hal.NewMockHAL()
	a := NewAgent("rpi-1", h, hub.New("rpi-1", client, topic.NewBuilder("roverhub/v1")), interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return client.subscribed(commandTopic) && len(client.on(telemetryTopic)) > 0
	}, time.Second, 5*time.Millisecond)

	stop := func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("agent did not stop")
		}
	}
	return client, h, stop
}

func TestAgentPresenceAndTelemetry(t *testing.T) {
	client, _, stop := startAgent(t, 10*time.Millisecond)

	require.Eventually(t, func() bool { return len(client.on(telemetryTopic)) >= 2 }, time.Second, 5*time.Millisecond)

	presence := client.on(onlineTopic)
	require.NotEmpty(t, presence)
	assert.Equal(t, published{topic: onlineTopic, retain: true, payload: `{"online":true}`}, presence[0])

	sample := client.on(telemetryTopic)[0]
	assert.False(t, sample.retain)
	msg, err := protocol.DecodeDeviceMessage([]byte(sample.payload))
	require.NoError(t, err)
	assert.Equal(t, protocol.Telemetry{Battery: 100, Signal: -40, CPUTemp: 45}, msg)

	stop()

	presence = client.on(onlineTopic)
	assert.Equal(t, `{"online":false}`, presence[len(presence)-1].payload)
	client.mu.Lock()
	assert.True(t, client.disconnected)
	client.mu.Unlock()
}

func TestAgentExecutesCommands(t *testing.T) {
	client, h, stop := startAgent(t, time.Hour)

	client.send(commandTopic, "forward")
	client.send(commandTopic, "cam_up")
	client.send(commandTopic, "start_stream|abc123")
	assert.Equal(t, hal.State{Direction: protocol.Forward, StreamID: "abc123", Camera: "up", Battery: 100}, h.State())

	client.send(commandTopic, "fly")
	client.send(commandTopic, "start_stream")
	assert.Equal(t, protocol.Forward, h.State().Direction)

	client.send(commandTopic, " stop\n")
	client.send(commandTopic, "stop_stream")
	assert.Equal(t, hal.State{Camera: "up", Battery: 100}, h.State())

	client.send(commandTopic, "right")
	client.send(commandTopic, "start_stream|xyz")
	stop()

	assert.Equal(t, hal.State{Camera: "up", Battery: 100}, h.State(), "exit parks the hardware")
}

func TestDiscoverDeviceID(t *testing.T) {
	file := filepath.Join(t.TempDir(), "device-id")
	require.NoError(t, os.WriteFile(file, []byte("rpi-file\n"), 0o600))

	t.Setenv(deviceIDEnv, "")
	assert.Equal(t, "rpi-file", DiscoverDeviceID("", file))
	assert.Equal(t, "", DiscoverDeviceID("", filepath.Join(t.TempDir(), "missing")))
	assert.Equal(t, "", DiscoverDeviceID("", ""))

	t.Setenv(deviceIDEnv, "rpi-env")
	assert.Equal(t, "rpi-env", DiscoverDeviceID("", file))
	assert.Equal(t, "rpi-flag", DiscoverDeviceID(" rpi-flag ", file))
}

func TestClientConfigSetsWill(t *testing.T) {
	cfg := &Config{MqttOptions: options.NewMqttOptions(), AgentOptions: options.NewAgentOptions()}

	c := cfg.clientConfig("rpi-1", topic.NewBuilder(cfg.MqttOptions.TopicRoot))
	assert.Equal(t, "rover-agent-rpi-1", c.ClientID)
	assert.Equal(t, onlineTopic, c.WillTopic)
	assert.Equal(t, `{"online":false}`, string(c.WillPayload))
	assert.Equal(t, byte(1), c.WillQoS)
	assert.True(t, c.WillRetain)
}

func TestNewAgentNeedsDeviceID(t *testing.T) {
	t.Setenv(deviceIDEnv, "")
	opts := options.NewAgentOptions()
	opts.DeviceIDFile = filepath.Join(t.TempDir(), "missing")

	_, err := (&Config{MqttOptions: options.NewMqttOptions(), AgentOptions: opts}).NewAgent()
	assert.ErrorContains(t, err, "no device id")

	opts.DeviceID = "rpi-1"
	a, err := (&Config{MqttOptions: options.NewMqttOptions(), AgentOptions: opts}).NewAgent()
	require.NoError(t, err)
	assert.Equal(t, "rpi-1", a.deviceID)
}
