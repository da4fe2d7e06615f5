package roveragent

import (
	"fmt"

	"github.com/autopeer-io/roverhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/roveragent/hal"
	"github.com/autopeer-io/roverhub/internal/roveragent/hub"
	"github.com/autopeer-io/roverhub/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/roverhub/pkg/mqtt/topic"
	"github.com/autopeer-io/roverhub/pkg/options"
)

type Config struct {
	MqttOptions  *options.MqttOptions
	AgentOptions *options.AgentOptions
}

func (cfg *Config) NewAgent() (*Agent, error) {
	id := DiscoverDeviceID(cfg.AgentOptions.DeviceID, cfg.AgentOptions.DeviceIDFile)
	if id == "" {
		return nil, fmt.Errorf("no device id: set --agent.device-id, %s or %s", deviceIDEnv, cfg.AgentOptions.DeviceIDFile)
	}

	topics := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)
	client, err := mqtt.NewClient(cfg.clientConfig(id, topics))
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	return NewAgent(id, hal.NewHAL(), hub.New(id, client, topics), cfg.AgentOptions.TelemetryInterval), nil
}

// clientConfig sets the will so the broker flips the retained presence flag
// to offline when the vehicle drops off without saying goodbye.
func (cfg *Config) clientConfig(id string, topics *mqtttopic.Builder) *mqtt.ClientConfig {
	c := cfg.MqttOptions.ToClientConfig()
	if c.ClientID == "" {
		c.ClientID = fmt.Sprintf("rover-agent-%s", id)
	}

	c.WillTopic = topics.Build(paths.Online, id)
	c.WillPayload = protocol.EncodePresence(false)
	c.WillQoS = 1
	c.WillRetain = true
	return c
}
