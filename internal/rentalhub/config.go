package rentalhub

import (
	"context"
	"fmt"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/service"
	"github.com/autopeer-io/roverhub/internal/rentalhub/events"
	"github.com/autopeer-io/roverhub/internal/rentalhub/monitor"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/internal/rentalhub/server"
	"github.com/autopeer-io/roverhub/internal/rentalhub/store/memory"
	"github.com/autopeer-io/roverhub/internal/rentalhub/store/postgres"
	"github.com/autopeer-io/roverhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	GrpcOptions     *options.GrpcOptions
	MqttOptions     *options.MqttOptions
	PostgresOptions *options.PostgresOptions
	RedisOptions    *options.RedisOptions
	KafkaOptions    *options.KafkaOptions
	RentalOptions   *options.RentalOptions
}

// NewStore opens Postgres, or falls back to the in-memory store when no DSN is
// configured.
func (cfg *Config) NewStore(ctx context.Context) (core.Store, error) {
	if cfg.PostgresOptions.DSN == "" {
		log.Warn("No Postgres DSN configured, using the in-memory store")
		return memory.New(), nil
	}
	return postgres.New(ctx, cfg.PostgresOptions)
}

// NewMonitor builds the reconciliation monitor. Without Redis every replica
// runs its own passes; the returned closer releases the Redis client.
func (cfg *Config) NewMonitor(store core.Store, notifier core.Notifier, publisher core.EventPublisher) (*monitor.Monitor, func(), error) {
	var lease monitor.Lease = monitor.LocalLease{}
	closer := func() {}

	if cfg.RedisOptions.Addr != "" {
		client, err := monitor.Connect(cfg.RedisOptions.Addr)
		if err != nil {
			return nil, nil, err
		}
		l := monitor.NewRedisLease(client, cfg.RedisOptions)
		lease = l
		closer = func() {
			if err := l.Close(); err != nil {
				log.Warn("Failed to close Redis client", "error", err.Error())
			}
		}
	}

	m := monitor.New(store, notifier, publisher, lease)
	m.Interval = cfg.RentalOptions.MonitorInterval
	m.Grace = cfg.RentalOptions.ExpiryGrace
	return m, closer, nil
}

func (cfg *Config) NewRentalHub(ctx context.Context) (*RentalHub, error) {
	// 1. Infrastructure: Store (Secondary Adapter)
	store, err := cfg.NewStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	h := &RentalHub{store: store}

	// 2. Infrastructure: Event publisher (Secondary Adapter)
	publisher, err := events.New(cfg.KafkaOptions)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to init event publisher: %w", err)
	}
	h.events = publisher

	// 3. Connection registry and relay, the Notifier of the core
	relay := registry.NewRelay(registry.New(), store, log.WithName("relay"))

	// 4. Core Domain Service (The Business Logic)
	svc := service.New(store, relay, publisher,
		service.WithExpiryGrace(cfg.RentalOptions.ExpiryGrace),
		service.WithMaxMinutes(cfg.RentalOptions.MaxMinutes),
	)

	// 5. Background reconciliation
	var extra []server.Server
	if cfg.RentalOptions.MonitorEnabled {
		m, closeLease, err := cfg.NewMonitor(store, relay, publisher)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to init monitor: %w", err)
		}
		h.closeLease = closeLease
		extra = append(extra, m)
	}

	// 6. Ingress Servers (Primary Adapters)
	var mqttClient pkgmqtt.Client
	if cfg.MqttOptions.Enabled {
		mqttClient, err = InitializeMQTTClient(cfg.MqttOptions)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
	}

	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
		MqttOptions: cfg.MqttOptions,
	}
	h.manager, err = server.NewManager(serverConfig, server.Deps{
		Service: svc,
		Relay:   relay,
		Store:   store,
		MQTT:    mqttClient,
	}, extra...)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to init server manager: %w", err)
	}

	return h, nil
}
