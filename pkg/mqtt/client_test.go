package mqtt

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"roverhub/v1/online/+", "roverhub/v1/online/rpi-01", true},
		{"roverhub/v1/online/+", "roverhub/v1/online/rpi-01/extra", false},
		{"roverhub/v1/#", "roverhub/v1/telemetry/rpi-01", true},
		{"roverhub/v1/telemetry/+", "roverhub/v1/online/rpi-01", false},
		{"roverhub/v1/command/rpi-01", "roverhub/v1/command/rpi-01", true},
		{"roverhub/v1/command/rpi-01", "roverhub/v1/command/rpi-02", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicMatches(tt.filter, tt.topic), "%s vs %s", tt.filter, tt.topic)
	}
}

func TestTopicFilterStripsSharePrefix(t *testing.T) {
	assert.Equal(t, "roverhub/v1/online/+", topicFilter("$share/roverhub/roverhub/v1/online/+"))
	assert.Equal(t, "roverhub/v1/online/+", topicFilter("roverhub/v1/online/+"))
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", WillQoS: 3})
	assert.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	assert.NoError(t, err)
	assert.False(t, c.IsConnected())
}

func TestSubscriptionDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 100)
	sub := newSubscription("$share/g/roverhub/v1/online/+", 1, func(_ context.Context, _ string, payload []byte) {
		got <- string(payload)
	})
	assert.Equal(t, "roverhub/v1/online/+", sub.match)

	go sub.deliver(ctx)
	for i := range 100 {
		sub.enqueue(ctx, message{topic: "roverhub/v1/online/rpi-01", payload: fmt.Appendf(nil, "%d", i)})
	}

	for i := range 100 {
		require.Equal(t, fmt.Sprintf("%d", i), <-got)
	}

	sub.stop()
	sub.stop()
	sub.enqueue(ctx, message{topic: "ignored"})
}
