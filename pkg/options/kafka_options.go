package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*KafkaOptions)(nil)

// KafkaOptions configures where rental lifecycle events go. Without brokers the
// events are only logged.
type KafkaOptions struct {
	Brokers []string `json:"brokers" mapstructure:"brokers"`
	Topic   string   `json:"topic" mapstructure:"topic"`
}

func NewKafkaOptions() *KafkaOptions {
	return &KafkaOptions{
		Topic: "roverhub.rental-events",
	}
}

func (o *KafkaOptions) Validate() []error {
	return nil
}

func (o *KafkaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Brokers, "kafka.brokers", o.Brokers, "Kafka brokers receiving rental events. Empty logs events instead.")
	fs.StringVar(&o.Topic, "kafka.topic", o.Topic, "Topic for rental lifecycle events.")
}
