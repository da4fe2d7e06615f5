package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverhub/pkg/log"
)

// RunFunc is the entry point run once the options are loaded and valid.
type RunFunc func() error

// NamedFlagSetOptions is implemented by the options of every command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section for the help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults that depend on other options.
	Complete() error

	// Validate reports every invalid option at once.
	Validate() error
}

// LogOptionsProvider is implemented by options that carry logger settings.
// The logger is initialized from them before RunFunc is called.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}

// App is a cobra command bound to a set of options loaded from flags, the
// environment and an optional config file.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	noConfig    bool
	watchConfig bool
	args        cobra.PositionalArgs
	commands    []*cobra.Command

	v   *viper.Viper
	cmd *cobra.Command
}

// NewApp builds the application. Options are applied in order.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		v:         viper.New(),
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if a.runFunc != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return a.run()
		}
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.name, fss.FlagSet("global"))
	}
	for _, f := range fss.FlagSets {
		cmd.PersistentFlags().AddFlagSet(f)
	}
	cliflag.SetUsageAndHelpFunc(cmd, fss, 80)

	cmd.AddCommand(a.commands...)
	a.cmd = cmd
}

// run loads the configuration into the options, then calls the run function.
func (a *App) run() error {
	if a.options != nil {
		if err := a.load(); err != nil {
			return err
		}
	}
	return a.runFunc()
}

// Load reads flags, environment and config file into the options, completes
// and validates them, and initializes the logger. Subcommands call it before
// using the shared options.
func (a *App) Load() error {
	return a.load()
}

func (a *App) load() error {
	if !a.noConfig {
		if err := a.readConfig(); err != nil {
			return err
		}
		if err := a.v.Unmarshal(a.options); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
	}

	if err := a.options.Complete(); err != nil {
		return err
	}
	if err := a.options.Validate(); err != nil {
		return err
	}

	if p, ok := a.options.(LogOptionsProvider); ok {
		log.Init(p.LogOptions())
		if a.watchConfig {
			a.watch()
		}
	}
	return nil
}
