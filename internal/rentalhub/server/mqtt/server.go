package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/roverhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/roverhub/pkg/mqtt"
	"github.com/autopeer-io/roverhub/pkg/mqtt/topic"
)

type handlerFunc func(ctx context.Context, deviceID string, payload []byte) error

// Server is the MQTT vehicle gateway. Vehicles announce themselves on the
// retained online topic and stream telemetry; the hub answers on the command
// topic of each device.
type Server struct {
	client pkgmqtt.Client
	topics *topic.Builder
	group  string
	relay  *registry.Relay
	logger log.Logger

	mu    sync.Mutex
	links map[string]*vehicleLink
}

// NewServer creates a new MQTT server (client). An empty group subscribes
// without a shared subscription.
func NewServer(client pkgmqtt.Client, builder *topic.Builder, group string, relay *registry.Relay) *Server {
	return &Server{
		client: client,
		topics: builder,
		group:  group,
		relay:  relay,
		logger: log.WithName("mqtt"),
		links:  make(map[string]*vehicleLink),
	}
}

// Start connects to the broker and subscribes to topics.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		s.closeLinks()
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	log.Info("MQTT Connected")

	if err := s.subscribe(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (s *Server) subscribe(ctx context.Context) error {
	const qos = 1

	subscriptions := map[string]handlerFunc{
		paths.Online:    s.handleOnline,
		paths.Telemetry: s.handleTelemetry,
	}

	topics := s.topics.Shared(s.group)
	for segment, handler := range subscriptions {
		filter := topics.BuildWildcard(segment)
		if err := s.client.Subscribe(ctx, filter, qos, func(c context.Context, t string, p []byte) {
			s.dispatch(c, segment, t, p, handler)
		}); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
		}
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, segment, t string, payload []byte, handler handlerFunc) {
	seg, deviceID, ok := s.topics.Parse(t)
	if !ok || seg != segment {
		s.logger.Debug("Ignoring message on unexpected topic", "topic", t)
		return
	}
	if err := handler(ctx, deviceID, payload); err != nil {
		s.logger.Error(err, "Handler execution failed", "topic", t)
	}
}

// handleOnline binds or unbinds the link of a device. Retained flags are
// redelivered after every reconnect, so an already online device is a no-op.
func (s *Server) handleOnline(ctx context.Context, deviceID string, payload []byte) error {
	p, err := protocol.DecodePresence(payload)
	if err != nil {
		return err
	}
	if !p.Online {
		s.disconnect(ctx, deviceID)
		return nil
	}

	s.mu.Lock()
	if _, ok := s.links[deviceID]; ok {
		s.mu.Unlock()
		return nil
	}
	link := newVehicleLink(s.client, deviceID, s.topics.Build(paths.Command, deviceID))
	s.links[deviceID] = link
	s.mu.Unlock()

	go link.Run()

	if err := s.relay.VehicleConnected(ctx, deviceID, link); err != nil {
		s.drop(deviceID, link)
		link.Close("rejected")
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Info("Rejecting unknown device", "device", deviceID)
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) handleTelemetry(ctx context.Context, deviceID string, payload []byte) error {
	return s.relay.HandleDeviceMessage(ctx, deviceID, payload)
}

func (s *Server) disconnect(ctx context.Context, deviceID string) {
	s.mu.Lock()
	link, ok := s.links[deviceID]
	delete(s.links, deviceID)
	s.mu.Unlock()
	if !ok {
		return
	}

	s.relay.VehicleDisconnected(ctx, deviceID, link)
	link.Close("offline")
}

func (s *Server) drop(deviceID string, link *vehicleLink) {
	s.mu.Lock()
	if s.links[deviceID] == link {
		delete(s.links, deviceID)
	}
	s.mu.Unlock()
}

// closeLinks stops the writers on shutdown. Presence is left to the retained
// flags, which the next hub instance reads on subscribe.
func (s *Server) closeLinks() {
	s.mu.Lock()
	links := s.links
	s.links = make(map[string]*vehicleLink)
	s.mu.Unlock()

	for _, l := range links {
		l.Close("hub shutting down")
	}
}
