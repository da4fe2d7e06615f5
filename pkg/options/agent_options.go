package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AgentOptions)(nil)

// AgentOptions configures the rover agent running on a vehicle.
type AgentOptions struct {
	// DeviceID overrides discovery from the environment and DeviceIDFile.
	DeviceID     string `json:"device-id" mapstructure:"device-id"`
	DeviceIDFile string `json:"device-id-file" mapstructure:"device-id-file"`

	TelemetryInterval time.Duration `json:"telemetry-interval" mapstructure:"telemetry-interval"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		DeviceIDFile:      "/etc/roverhub/device-id",
		TelemetryInterval: 5 * time.Second,
	}
}

func (o *AgentOptions) Validate() []error {
	var errs []error

	if o.TelemetryInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("--agent.telemetry-interval must be at least 100ms"))
	}

	return errs
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DeviceID, "agent.device-id", o.DeviceID, "Device id of this vehicle. Discovered from ROVERHUB_DEVICE_ID or --agent.device-id-file when empty.")
	fs.StringVar(&o.DeviceIDFile, "agent.device-id-file", o.DeviceIDFile, "File holding the device id.")
	fs.DurationVar(&o.TelemetryInterval, "agent.telemetry-interval", o.TelemetryInterval, "Period of the telemetry report.")
}
