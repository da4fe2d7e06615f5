package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PostgresOptions)(nil)

// PostgresOptions configures the persisted store. An empty DSN selects the
// in-memory store, which is only meant for local development.
type PostgresOptions struct {
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	MaxConns        int32         `json:"max-conns" mapstructure:"max-conns"`
	MinConns        int32         `json:"min-conns" mapstructure:"min-conns"`
	MaxConnLifetime time.Duration `json:"max-conn-lifetime" mapstructure:"max-conn-lifetime"`

	// Migrate applies the embedded schema on startup.
	Migrate bool `json:"migrate" mapstructure:"migrate"`
}

func NewPostgresOptions() *PostgresOptions {
	return &PostgresOptions{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		Migrate:         true,
	}
}

func (o *PostgresOptions) Validate() []error {
	var errs []error

	if o.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("--postgres.max-conns must be at least 1"))
	}
	if o.MinConns < 0 || o.MinConns > o.MaxConns {
		errs = append(errs, fmt.Errorf("--postgres.min-conns must be between 0 and --postgres.max-conns"))
	}

	return errs
}

func (o *PostgresOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DSN, "postgres.dsn", o.DSN, "Postgres connection string. Empty runs on an in-memory store.")
	fs.Int32Var(&o.MaxConns, "postgres.max-conns", o.MaxConns, "Maximum pool size.")
	fs.Int32Var(&o.MinConns, "postgres.min-conns", o.MinConns, "Minimum idle connections kept in the pool.")
	fs.DurationVar(&o.MaxConnLifetime, "postgres.max-conn-lifetime", o.MaxConnLifetime, "Maximum lifetime of a pooled connection.")
	fs.BoolVar(&o.Migrate, "postgres.migrate", o.Migrate, "Apply the embedded schema migrations on startup.")
}
