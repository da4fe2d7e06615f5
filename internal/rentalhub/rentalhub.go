package rentalhub

import (
	"context"
	"fmt"
	"os"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/events"
	"github.com/autopeer-io/roverhub/internal/rentalhub/server"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/options"
)

// RentalHub owns the process-wide resources of a running hub.
type RentalHub struct {
	manager    *server.Manager
	store      core.Store
	events     events.Publisher
	closeLease func()
}

// Run serves until ctx is cancelled and then releases everything.
func (h *RentalHub) Run(ctx context.Context) error {
	defer h.Close()

	log.Info("Starting rental hub")
	return h.manager.Start(ctx)
}

func (h *RentalHub) Close() {
	if h.closeLease != nil {
		h.closeLease()
	}
	if h.events != nil {
		if err := h.events.Close(); err != nil {
			log.Warn("Failed to close event publisher", "error", err.Error())
		}
	}
	if h.store != nil {
		h.store.Close()
	}
}

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("roverhub-%s", hostname)
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return client, nil
}
