package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverhub/internal/roveragent"
	"github.com/autopeer-io/roverhub/pkg/app"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/options"
)

type AgentOptions struct {
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	AgentOptions *options.AgentOptions `json:"agent" mapstructure:"agent"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*AgentOptions)(nil)
	_ app.LogOptionsProvider  = (*AgentOptions)(nil)
)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		MqttOptions:  options.NewMqttOptions(),
		AgentOptions: options.NewAgentOptions(),
		Log:          log.NewOptions(),
	}

	// The agent has no transport other than MQTT.
	o.MqttOptions.Enabled = true

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	o.MqttOptions.Enabled = true
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *AgentOptions) Config() (*roveragent.Config, error) {
	return &roveragent.Config{
		MqttOptions:  o.MqttOptions,
		AgentOptions: o.AgentOptions,
	}, nil
}
