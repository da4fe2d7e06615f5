// Package lifecycle owns the terminal transitions of a rental.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/ptr"

	fsmutil "github.com/autopeer-io/roverhub/internal/pkg/util/fsm"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

const (
	EventComplete = "complete"
	EventCancel   = "cancel"
)

var events = fsm.Events{
	{Name: EventComplete, Src: []string{string(model.RentalActive)}, Dst: string(model.RentalCompleted)},
	{Name: EventCancel, Src: []string{string(model.RentalActive)}, Dst: string(model.RentalCancelled)},
}

// Complete closes r normally.
func Complete(ctx context.Context, r *model.Rental, by model.EndedBy, at time.Time) error {
	return fire(ctx, r, EventComplete, by, at)
}

// Cancel closes r on behalf of someone other than its owner.
func Cancel(ctx context.Context, r *model.Rental, by model.EndedBy, at time.Time) error {
	return fire(ctx, r, EventCancel, by, at)
}

// Close picks the event matching the attribution: admins cancel, everyone
// else completes.
func Close(ctx context.Context, r *model.Rental, by model.EndedBy, at time.Time) error {
	if by == model.EndedByAdmin {
		return Cancel(ctx, r, by, at)
	}
	return Complete(ctx, r, by, at)
}

// fire runs event on a machine seeded with r's current status. r is only
// modified when the transition is allowed.
func fire(ctx context.Context, r *model.Rental, event string, by model.EndedBy, at time.Time) error {
	m := fsm.NewFSM(string(r.Status), events, fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
			r.Status = model.RentalStatus(e.Dst)
			r.EndedAt = ptr.To(at)
			r.EndedBy = by
			return nil
		}),
	})

	if err := m.Event(ctx, event); err != nil {
		if fsmutil.IsInvalidEvent(err) {
			return core.ErrRentalNotActive.Withf("rental %s is already %s", r.ID, r.Status)
		}
		return fmt.Errorf("rental %s: %s: %w", r.ID, event, err)
	}
	return nil
}
