package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8000", false},
		{":8091", false},
		{"localhost:0", false},
		{"localhost", true},
		{"host:http", true},
		{"host:70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	all := []IOptions{
		NewHttpOptions(),
		NewGrpcOptions(),
		NewMqttOptions(),
		NewPostgresOptions(),
		NewRedisOptions(),
		NewKafkaOptions(),
		NewRentalOptions(),
		NewAgentOptions(),
	}

	for _, o := range all {
		assert.Empty(t, o.Validate(), "%T", o)
	}
}

func TestMqttOptionsOnlyValidatedWhenEnabled(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "not a url"
	assert.Empty(t, o.Validate())

	o.Enabled = true
	assert.Len(t, o.Validate(), 1)
}

func TestRentalOptionsFlags(t *testing.T) {
	o := NewRentalOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--rental.expiry-grace=15s", "--rental.monitor-interval=30s"}))
	assert.Equal(t, 15*time.Second, o.ExpiryGrace)
	assert.Equal(t, 30*time.Second, o.MonitorInterval)

	o.MaxMinutes = 0
	assert.Len(t, o.Validate(), 1)
}

func TestMqttToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	cfg := o.ToClientConfig()

	assert.Equal(t, o.Broker, cfg.BrokerURL)
	assert.Equal(t, uint16(30), cfg.KeepAlive)
	assert.Equal(t, o.SessionExpiry, cfg.SessionExpiry)
}

func TestAgentOptionsRejectsTightInterval(t *testing.T) {
	o := NewAgentOptions()
	o.TelemetryInterval = time.Millisecond
	assert.Len(t, o.Validate(), 1)
}
