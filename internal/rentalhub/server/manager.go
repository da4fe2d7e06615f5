package server

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/service"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/internal/rentalhub/server/grpc"
	"github.com/autopeer-io/roverhub/internal/rentalhub/server/http"
	"github.com/autopeer-io/roverhub/internal/rentalhub/server/mqtt"
	"github.com/autopeer-io/roverhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/mqtt/topic"
	"github.com/autopeer-io/roverhub/pkg/options"
)

// Server defines the common interface for all sub-servers (grpc, mqtt, http)
// and background loops such as the reconciliation monitor.
type Server interface {
	Start(ctx context.Context) error
}

type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
	MqttOptions *options.MqttOptions
}

// Deps are the collaborators shared by the ingress servers. MQTT is nil when
// the broker transport is disabled.
type Deps struct {
	Service *service.Service
	Relay   *registry.Relay
	Store   core.Store
	MQTT    pkgmqtt.Client
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
// extra servers run alongside them.
func NewManager(cfg *Config, deps Deps, extra ...Server) (*Manager, error) {
	if deps.Service == nil || deps.Relay == nil || deps.Store == nil {
		return nil, fmt.Errorf("server manager needs a service, a relay and a store")
	}

	var servers []Server

	// 1. HTTP Server (REST, WebSockets, probes and metrics)
	servers = append(servers, http.NewServer(cfg.HttpOptions, http.Deps{
		Service: deps.Service,
		Relay:   deps.Relay,
		Store:   deps.Store,
	}))

	// 2. gRPC Server (Health)
	if cfg.GrpcOptions.Enabled {
		servers = append(servers, grpc.NewServer(cfg.GrpcOptions, deps.Store))
	}

	// 3. MQTT Server (Vehicle gateway)
	if deps.MQTT != nil {
		builder := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
		group := cfg.MqttOptions.SharedGroup
		servers = append(servers, mqtt.NewServer(deps.MQTT, builder, group, deps.Relay))
	}

	servers = append(servers, extra...)

	return &Manager{
		servers: servers,
	}, nil
}

// Start launches all servers in parallel and waits for termination. The first
// failure stops the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range m.servers {
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
