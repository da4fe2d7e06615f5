package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverhub/internal/rentalhub"
	"github.com/autopeer-io/roverhub/pkg/app"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/options"
)

type HubOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	GrpcOptions     *options.GrpcOptions     `json:"grpc" mapstructure:"grpc"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	PostgresOptions *options.PostgresOptions `json:"postgres" mapstructure:"postgres"`
	RedisOptions    *options.RedisOptions    `json:"redis" mapstructure:"redis"`
	KafkaOptions    *options.KafkaOptions    `json:"kafka" mapstructure:"kafka"`
	RentalOptions   *options.RentalOptions   `json:"rental" mapstructure:"rental"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*HubOptions)(nil)
	_ app.LogOptionsProvider  = (*HubOptions)(nil)
)

func NewHubOptions() *HubOptions {
	o := &HubOptions{
		HttpOptions:     options.NewHttpOptions(),
		GrpcOptions:     options.NewGrpcOptions(),
		MqttOptions:     options.NewMqttOptions(),
		PostgresOptions: options.NewPostgresOptions(),
		RedisOptions:    options.NewRedisOptions(),
		KafkaOptions:    options.NewKafkaOptions(),
		RentalOptions:   options.NewRentalOptions(),
		Log:             log.NewOptions(),
	}

	return o
}

func (o *HubOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.KafkaOptions.AddFlags(fss.FlagSet("kafka"))
	o.RentalOptions.AddFlags(fss.FlagSet("rental"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *HubOptions) Complete() error {
	return nil
}

func (o *HubOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.PostgresOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.KafkaOptions.Validate()...)
	errs = append(errs, o.RentalOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *HubOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *HubOptions) Config() (*rentalhub.Config, error) {
	return &rentalhub.Config{
		HttpOptions:     o.HttpOptions,
		GrpcOptions:     o.GrpcOptions,
		MqttOptions:     o.MqttOptions,
		PostgresOptions: o.PostgresOptions,
		RedisOptions:    o.RedisOptions,
		KafkaOptions:    o.KafkaOptions,
		RentalOptions:   o.RentalOptions,
	}, nil
}
