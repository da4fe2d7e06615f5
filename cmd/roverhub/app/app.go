package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/roverhub/cmd/roverhub/app/options"
	"github.com/autopeer-io/roverhub/pkg/app"
)

const (
	commandName = "roverhub"
	commandDesc = `The roverhub server rents remote-controlled cars by the minute. It keeps
the state of every car and rental, relays drive commands from the renter to
the vehicle, and closes expired rentals in the background.`
)

func NewApp() *app.App {
	opts := options.NewHubOptions()

	var application *app.App
	application = app.NewApp(
		commandName,
		"Launch the roverhub rental server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithSubCommands(newReconcileCommand(opts, func() error { return application.Load() })),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.HubOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewRentalHub(ctx)
		if err != nil {
			return fmt.Errorf("failed to create rental hub: %w", err)
		}

		return server.Run(ctx)
	}
}
