// Package monitor periodically reconciles rental and car state: it closes
// rentals past their paid time and frees busy cars that lost their rental.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/roverhub/internal/pkg/metrics"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/lifecycle"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/internal/rentalhub/protocol"
	"github.com/autopeer-io/roverhub/pkg/log"
)

// Monitor runs reconciliation passes. Passes never overlap.
type Monitor struct {
	store    core.Store
	notifier core.Notifier
	events   core.EventPublisher
	lease    Lease

	Interval time.Duration
	Grace    time.Duration
	Now      func() time.Time
	Log      log.Logger
}

func New(store core.Store, notifier core.Notifier, events core.EventPublisher, lease Lease) *Monitor {
	if lease == nil {
		lease = LocalLease{}
	}
	return &Monitor{
		store:    store,
		notifier: notifier,
		events:   events,
		lease:    lease,
		Interval: time.Minute,
		Grace:    10 * time.Second,
		Now:      time.Now,
		Log:      log.WithName("monitor"),
	}
}

// Start runs a pass every Interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.Log.Info("Starting reconciliation monitor", "interval", m.Interval, "grace", m.Grace)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-ctx.Done():
			m.Log.Info("Stopping reconciliation monitor")
			return nil
		}
	}
}

// tick runs one leased pass. Failures are logged and retried on the next tick.
func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			metrics.MonitorPasses.WithLabelValues("panic").Inc()
			m.Log.Error(fmt.Errorf("%v", p), "Reconciliation pass panicked")
		}
	}()

	ok, err := m.lease.Acquire(ctx)
	if err != nil {
		metrics.MonitorPasses.WithLabelValues("error").Inc()
		m.Log.Error(err, "Failed to acquire monitor lease")
		return
	}
	if !ok {
		metrics.MonitorPasses.WithLabelValues("skipped").Inc()
		m.Log.Debug("Another replica holds the monitor lease")
		return
	}

	if _, err := m.RunOnce(ctx); err != nil {
		m.Log.Error(err, "Reconciliation pass failed")
	}
}

// RunOnce runs one pass: plan and repair inside a single transaction, then
// notify devices and observers. It returns the applied plan. Any failure rolls
// the whole pass back and nothing is notified.
func (m *Monitor) RunOnce(ctx context.Context) (Plan, error) {
	start := time.Now()
	defer func() { metrics.MonitorPassDuration.Observe(time.Since(start).Seconds()) }()

	var (
		plan Plan
		fx   lifecycle.Effects
	)
	err := m.store.Tx(ctx, func(tx core.Tx) error {
		now := m.Now()

		var err error
		if plan, err = m.plan(ctx, tx, now); err != nil {
			return err
		}

		for _, r := range plan.Expired {
			car, err := tx.LockCar(ctx, r.CarID)
			if err != nil {
				return err
			}
			if err := lifecycle.Finish(ctx, tx, r, car, model.EndedBySystem, now, &fx); err != nil {
				return fmt.Errorf("expire rental %s: %w", r.ID, err)
			}
		}

		var repaired []*model.Car
		for _, c := range plan.Orphans {
			// A rental may have started between the two snapshots.
			_, err := tx.ActiveRentalForCar(ctx, c.ID)
			if err == nil {
				m.Log.Debug("Busy car gained a rental during the pass", "car", c.ID)
				continue
			}
			if !errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("check rental of car %s: %w", c.ID, err)
			}

			freed, err := tx.TransitionCar(ctx, c.ID, model.CarBusy, model.CarFree)
			if err != nil {
				return fmt.Errorf("free orphaned car %s: %w", c.ID, err)
			}
			if !freed {
				continue
			}
			repaired = append(repaired, c)
			fx.Command(c.DeviceID, protocol.StopStream{})
			fx.Freed(c.DeviceID)
			fx.Broadcast()
			fx.Emit(model.Event{Type: model.EventOrphanRepaired, CarID: c.ID, At: now})
		}
		plan.Orphans = repaired
		return nil
	})
	if err != nil {
		metrics.MonitorPasses.WithLabelValues("error").Inc()
		return Plan{}, err
	}

	metrics.MonitorPasses.WithLabelValues("ok").Inc()
	metrics.MonitorRepairs.WithLabelValues("expired").Add(float64(len(plan.Expired)))
	metrics.MonitorRepairs.WithLabelValues("orphan").Add(float64(len(plan.Orphans)))

	if !plan.Empty() {
		m.Log.Info("Reconciliation pass repaired state", "expired", len(plan.Expired), "orphans", len(plan.Orphans))
	}
	fx.Apply(context.WithoutCancel(ctx), m.notifier, m.events, m.Log)
	return plan, nil
}

// Preview computes the plan of a pass without applying it.
func (m *Monitor) Preview(ctx context.Context) (Plan, error) {
	var plan Plan
	err := m.store.Tx(ctx, func(tx core.Tx) error {
		var err error
		plan, err = m.plan(ctx, tx, m.Now())
		return err
	})
	return plan, err
}

func (m *Monitor) plan(ctx context.Context, tx core.Tx, now time.Time) (Plan, error) {
	active, err := tx.LockActiveRentals(ctx)
	if err != nil {
		return Plan{}, err
	}
	busy, err := tx.LockBusyCars(ctx)
	if err != nil {
		return Plan{}, err
	}
	return BuildPlan(active, busy, now, m.Grace), nil
}
