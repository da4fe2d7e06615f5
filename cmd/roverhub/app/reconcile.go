package app

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/roverhub/cmd/roverhub/app/options"
	"github.com/autopeer-io/roverhub/internal/rentalhub/events"
	"github.com/autopeer-io/roverhub/internal/rentalhub/monitor"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/pkg/log"
)

// newReconcileCommand runs a single pass against the configured store. It
// skips the Redis lease; vehicles are not connected to this process, so
// stream commands are dropped and only the store is repaired.
func newReconcileCommand(opts *options.HubOptions, load func() error) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Close expired rentals and free orphaned cars once, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := load(); err != nil {
				return err
			}
			ctx := genericapiserver.SetupSignalContext()

			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			store, err := cfg.NewStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to init store: %w", err)
			}
			defer store.Close()

			publisher, err := events.New(cfg.KafkaOptions)
			if err != nil {
				return fmt.Errorf("failed to init event publisher: %w", err)
			}
			defer publisher.Close()

			relay := registry.NewRelay(registry.New(), store, log.WithName("relay"))
			m, closeLease, err := cfg.NewMonitor(store, relay, publisher)
			if err != nil {
				return err
			}
			defer closeLease()

			var plan monitor.Plan
			if dryRun {
				plan, err = m.Preview(ctx)
			} else {
				plan, err = m.RunOnce(ctx)
			}
			if err != nil {
				return err
			}

			printPlan(cmd.OutOrStdout(), plan, dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only print what would be repaired.")

	return cmd
}

func printPlan(w io.Writer, plan monitor.Plan, dryRun bool) {
	if plan.Empty() {
		fmt.Fprintln(w, "Nothing to reconcile.")
		return
	}

	closeVerb, freeVerb := "closed", "freed"
	if dryRun {
		closeVerb, freeVerb = "would close", "would free"
	}

	table := uitable.New()
	table.MaxColWidth = 100
	table.AddRow("ACTION", "KIND", "ID", "DETAIL")
	for _, r := range plan.Expired {
		detail := fmt.Sprintf("car %s, expired %s", r.CarID, r.ExpiresAt().Format(time.RFC3339))
		table.AddRow(closeVerb, "rental", r.ID, detail)
	}
	for _, c := range plan.Orphans {
		detail := fmt.Sprintf("device %s busy without rental", c.DeviceID)
		table.AddRow(freeVerb, "car", c.ID, detail)
	}
	fmt.Fprintln(w, table)
}
