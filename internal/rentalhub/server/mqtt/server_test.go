package mqtt

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/roverhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/internal/rentalhub/store/memory"
	"github.com/autopeer-io/roverhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/mqtt/topic"
)

type published struct {
	topic   string
	payload string
}

type fakeClient struct {
	mu        sync.Mutex
	handlers  map[string]pkgmqtt.MessageHandler
	published []published
}

var _ pkgmqtt.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]pkgmqtt.MessageHandler)}
}

func (c *fakeClient) Start(context.Context) error           { return nil }
func (c *fakeClient) Disconnect(context.Context)            {}
func (c *fakeClient) AwaitConnection(context.Context) error { return nil }
func (c *fakeClient) IsConnected() bool                     { return true }

func (c *fakeClient) Publish(_ context.Context, t string, _ int, _ bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: t, payload: string(payload)})
	return nil
}

func (c *fakeClient) Subscribe(_ context.Context, filter string, _ int, handler pkgmqtt.MessageHandler) error {
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

func (c *fakeClient) Published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func (c *fakeClient) Filters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	filters := make([]string, 0, len(c.handlers))
	for f := range c.handlers {
		filters = append(filters, f)
	}
	return filters
}

// deliver feeds a message to the handler whose filter matches t.
func (c *fakeClient) deliver(t string, payload []byte) {
	c.mu.Lock()
	var h pkgmqtt.MessageHandler
	for filter, handler := range c.handlers {
		if parts := strings.SplitN(filter, "/", 3); parts[0] == "$share" && len(parts) == 3 {
			filter = parts[2]
		}
		if pkgmqtt.TopicMatches(filter, t) {
			h = handler
		}
	}
	c.mu.Unlock()
	if h != nil {
		h(context.Background(), t, payload)
	}
}

type fixture struct {
	client *fakeClient
	store  *memory.Store
	relay  *registry.Relay
	topics *topic.Builder
	car    *model.Car
	cancel context.CancelFunc
	done   chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		client: newFakeClient(),
		store:  memory.New(),
		topics: topic.NewBuilder("roverhub/v1"),
		car: &model.Car{
			ID:             uuid.New(),
			Name:           "Rover 1",
			DeviceID:       "rpi-1",
			Status:         model.CarOffline,
			PricePerMinute: decimal.NewFromInt(1),
		},
		done: make(chan error, 1),
	}
	f.store.PutCar(f.car)
	f.relay = registry.NewRelay(registry.New(), f.store, log.NewNopLogger())

	s := NewServer(f.client, f.topics, "roverhub", f.relay)
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return len(f.client.Filters()) == 2 }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		<-f.done
	})
	return f
}

func TestSubscribesShared(t *testing.T) {
	f := newFixture(t)

	assert.ElementsMatch(t, []string{
		"$share/roverhub/roverhub/v1/online/+",
		"$share/roverhub/roverhub/v1/telemetry/+",
	}, f.client.Filters())
}

func TestPresenceAndCommands(t *testing.T) {
	f := newFixture(t)
	online := f.topics.Build(paths.Online, "rpi-1")

	f.client.deliver(online, protocol.EncodePresence(true))
	assert.Equal(t, model.CarFree, f.store.Car(f.car.ID).Status)

	// Redelivered retained flag.
	f.client.deliver(online, protocol.EncodePresence(true))
	_, ok := f.relay.Registry().Vehicle("rpi-1")
	require.True(t, ok)

	assert.Equal(t, protocol.Delivered, f.relay.SendCommand("rpi-1", protocol.Drive{Direction: protocol.Left}))
	require.Eventually(t, func() bool { return len(f.client.Published()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, published{topic: "roverhub/v1/command/rpi-1", payload: "left"}, f.client.Published()[0])

	f.client.deliver(online, protocol.EncodePresence(false))
	assert.Equal(t, model.CarOffline, f.store.Car(f.car.ID).Status)
	assert.Equal(t, protocol.Offline, f.relay.SendCommand("rpi-1", protocol.Halt{}))
}

func TestUnknownDeviceRejected(t *testing.T) {
	f := newFixture(t)

	f.client.deliver(f.topics.Build(paths.Online, "ghost"), protocol.EncodePresence(true))
	_, ok := f.relay.Registry().Vehicle("ghost")
	assert.False(t, ok)
}

func TestTelemetry(t *testing.T) {
	f := newFixture(t)

	frame, err := protocol.EncodeTelemetry(protocol.Telemetry{Battery: 64, Signal: -70})
	require.NoError(t, err)
	f.client.deliver(f.topics.Build(paths.Telemetry, "rpi-1"), frame)

	car := f.store.Car(f.car.ID)
	assert.Equal(t, 64, car.BatteryLevel)
	assert.Equal(t, -70, car.SignalStrength)
}

func TestMalformedPresenceIgnored(t *testing.T) {
	f := newFixture(t)

	f.client.deliver(f.topics.Build(paths.Online, "rpi-1"), []byte("yes"))
	assert.Equal(t, model.CarOffline, f.store.Car(f.car.ID).Status)
}
