package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

// Plan is what one reconciliation pass will repair.
type Plan struct {
	// Expired are active rentals past expiry plus grace.
	Expired []*model.Rental
	// Orphans are busy cars without an active rental.
	Orphans []*model.Car
}

func (p Plan) Empty() bool {
	return len(p.Expired) == 0 && len(p.Orphans) == 0
}

// BuildPlan compares active rentals and busy cars as of now. It does not touch
// its inputs.
func BuildPlan(active []*model.Rental, busy []*model.Car, now time.Time, grace time.Duration) Plan {
	var plan Plan

	rented := make(map[uuid.UUID]bool, len(active))
	for _, r := range active {
		rented[r.CarID] = true
		if r.Expired(now, grace) {
			plan.Expired = append(plan.Expired, r)
		}
	}

	for _, c := range busy {
		if !rented[c.ID] {
			plan.Orphans = append(plan.Orphans, c)
		}
	}

	return plan
}
