package app

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"

	"github.com/autopeer-io/roverhub/pkg/log"
)

const configFlagName = "config"

var cfgFile string

func addConfigFlag(name string, fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile,
		fmt.Sprintf("Read configuration from file (yaml, json or toml). Environment variables prefixed with %s_ override it.", envPrefix(name)))
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// readConfig layers the config file and the environment under the flags
// explicitly set on the command line.
func (a *App) readConfig() error {
	if err := a.v.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return err
	}

	a.v.SetEnvPrefix(envPrefix(a.name))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}
	return nil
}

// watch follows the config file and applies a changed log level.
func (a *App) watch() {
	if cfgFile == "" {
		return
	}

	a.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := a.v.GetString("log.level")
		if err := log.SetLevel(level); err != nil {
			log.Error(err, "Ignoring config change", "file", e.Name)
			return
		}
		log.Info("Config file changed", "file", e.Name, "log.level", level)
	})
	a.v.WatchConfig()
}
