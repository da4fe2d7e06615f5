package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RentalOptions)(nil)

// RentalOptions holds the billing and expiry knobs shared by the rental
// operations and the reconciliation monitor.
type RentalOptions struct {
	// ExpiryGrace is added to a rental's expiry before it is closed.
	ExpiryGrace time.Duration `json:"expiry-grace" mapstructure:"expiry-grace"`

	// MaxMinutes caps a single start or extend request.
	MaxMinutes int `json:"max-minutes" mapstructure:"max-minutes"`

	// MonitorInterval is the period of the reconciliation pass.
	MonitorInterval time.Duration `json:"monitor-interval" mapstructure:"monitor-interval"`

	// MonitorEnabled runs the periodic pass inside the server process.
	MonitorEnabled bool `json:"monitor-enabled" mapstructure:"monitor-enabled"`
}

func NewRentalOptions() *RentalOptions {
	return &RentalOptions{
		ExpiryGrace:     10 * time.Second,
		MaxMinutes:      240,
		MonitorInterval: 60 * time.Second,
		MonitorEnabled:  true,
	}
}

func (o *RentalOptions) Validate() []error {
	var errs []error

	if o.ExpiryGrace < 0 {
		errs = append(errs, fmt.Errorf("--rental.expiry-grace must not be negative"))
	}
	if o.MaxMinutes < 1 {
		errs = append(errs, fmt.Errorf("--rental.max-minutes must be at least 1"))
	}
	if o.MonitorInterval < time.Second {
		errs = append(errs, fmt.Errorf("--rental.monitor-interval must be at least 1s"))
	}

	return errs
}

func (o *RentalOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.ExpiryGrace, "rental.expiry-grace", o.ExpiryGrace, "Grace period after expiry before a rental is closed.")
	fs.IntVar(&o.MaxMinutes, "rental.max-minutes", o.MaxMinutes, "Upper bound for minutes bought in one start or extend call.")
	fs.DurationVar(&o.MonitorInterval, "rental.monitor-interval", o.MonitorInterval, "Period of the reconciliation pass.")
	fs.BoolVar(&o.MonitorEnabled, "rental.monitor-enabled", o.MonitorEnabled, "Run the reconciliation monitor in this process.")
}
