package service

import (
	"context"
	"time"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/lifecycle"
	"github.com/autopeer-io/roverhub/pkg/log"
)

const (
	DefaultExpiryGrace = 10 * time.Second
	DefaultMaxMinutes  = 240

	defaultPageSize = 50
	maxPageSize     = 200
)

// Service implements the rental use cases. It is the only writer of rental
// state besides the reconciliation monitor.
type Service struct {
	store    core.Store
	notifier core.Notifier
	events   core.EventPublisher

	now        func() time.Time
	grace      time.Duration
	maxMinutes int
	logger     log.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithExpiryGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

func WithMaxMinutes(n int) Option {
	return func(s *Service) { s.maxMinutes = n }
}

func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates the rental service.
func New(store core.Store, notifier core.Notifier, events core.EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		notifier:   notifier,
		events:     events,
		now:        time.Now,
		grace:      DefaultExpiryGrace,
		maxMinutes: DefaultMaxMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithName("rental")
	}
	return s
}

// tx runs fn in a transaction and applies the effects fn recorded, but only
// if the transaction committed.
func (s *Service) tx(ctx context.Context, fn func(tx core.Tx, fx *lifecycle.Effects) error) error {
	var fx lifecycle.Effects
	if err := s.store.Tx(ctx, func(tx core.Tx) error { return fn(tx, &fx) }); err != nil {
		return err
	}
	if !fx.Empty() {
		fx.Apply(context.WithoutCancel(ctx), s.notifier, s.events, s.logger)
	}
	return nil
}

func (s *Service) checkMinutes(minutes int) error {
	if minutes < 1 || minutes > s.maxMinutes {
		return core.ErrInvalidArgument.Withf("minutes must be between 1 and %d", s.maxMinutes)
	}
	return nil
}
