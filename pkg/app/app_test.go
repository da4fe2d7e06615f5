package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverhub/pkg/log"
)

type serverOptions struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

type testOptions struct {
	Server *serverOptions `mapstructure:"server"`
	Log    *log.Options   `mapstructure:"log"`
}

func newTestOptions() *testOptions {
	return &testOptions{
		Server: &serverOptions{Addr: "default", Port: 1},
		Log:    log.NewOptions(),
	}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "Address.")
	fs.IntVar(&o.Server.Port, "server.port", o.Server.Port, "Port.")
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *testOptions) Complete() error { return nil }

func (o *testOptions) Validate() error {
	if o.Server.Port <= 0 {
		return errors.New("--server.port must be positive")
	}
	return nil
}

func (o *testOptions) LogOptions() *log.Options { return o.Log }

func execute(t *testing.T, args ...string) (*testOptions, bool, error) {
	t.Helper()
	t.Cleanup(func() { cfgFile = "" })

	opts := newTestOptions()
	ran := false
	a := NewApp("roverhub-test", "test",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	return opts, ran, err
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  addr: from-file\n  port: 9\n"), 0o600))

	opts, ran, err := execute(t, "--config", file, "--server.port", "7")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, serverOptions{Addr: "from-file", Port: 7}, *opts.Server)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("ROVERHUB_TEST_SERVER_ADDR", "from-env")

	opts, _, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, "from-env", opts.Server.Addr)
	assert.Equal(t, 1, opts.Server.Port)
}

func TestInvalidOptionsStopRun(t *testing.T) {
	_, ran, err := execute(t, "--server.port", "0")
	assert.ErrorContains(t, err, "--server.port")
	assert.False(t, ran)
}

func TestMissingConfigFile(t *testing.T) {
	_, ran, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
	assert.False(t, ran)
}

func TestRejectsPositionalArgs(t *testing.T) {
	_, ran, err := execute(t, "extra")
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "ROVER_AGENT", envPrefix("rover-agent"))
	assert.Equal(t, "ROVERHUB", envPrefix("roverhub"))
}
