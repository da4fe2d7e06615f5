package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/lifecycle"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

const maxTextLength = 2000

// ListMyRentals pages through the caller's rentals, newest first. A
// non-positive limit selects the default page size.
func (s *Service) ListMyRentals(ctx context.Context, caller model.Caller, limit, offset int) ([]*model.Rental, error) {
	if offset < 0 {
		return nil, core.ErrInvalidArgument.Withf("offset must not be negative")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	var rentals []*model.Rental
	err := s.store.Tx(ctx, func(tx core.Tx) error {
		var err error
		rentals, err = tx.ListRentalsByUser(ctx, caller.UserID, limit, offset)
		return err
	})
	return rentals, err
}

// ReportIssue attaches a problem report to one of the caller's rentals.
func (s *Service) ReportIssue(ctx context.Context, caller model.Caller, rentalID uuid.UUID, issue string) (*model.Rental, error) {
	issue = strings.TrimSpace(issue)
	if issue == "" || len(issue) > maxTextLength {
		return nil, core.ErrInvalidArgument.Withf("issue must be 1 to %d characters", maxTextLength)
	}

	return s.annotate(ctx, caller, rentalID, func(r *model.Rental) {
		r.IssueReport = ptr.To(issue)
	})
}

// SubmitFeedback rates one of the caller's rentals from 1 to 5.
func (s *Service) SubmitFeedback(ctx context.Context, caller model.Caller, rentalID uuid.UUID, rating int, comment *string) (*model.Rental, error) {
	if rating < 1 || rating > 5 {
		return nil, core.ErrInvalidArgument.Withf("rating must be between 1 and 5")
	}
	if comment != nil && len(*comment) > maxTextLength {
		return nil, core.ErrInvalidArgument.Withf("comment must be at most %d characters", maxTextLength)
	}

	return s.annotate(ctx, caller, rentalID, func(r *model.Rental) {
		r.Rating = ptr.To(rating)
		r.Feedback = comment
	})
}

// annotate changes non-billing fields. Only the owner may, not even an admin.
func (s *Service) annotate(ctx context.Context, caller model.Caller, rentalID uuid.UUID, change func(r *model.Rental)) (*model.Rental, error) {
	var rental *model.Rental
	err := s.tx(ctx, func(tx core.Tx, _ *lifecycle.Effects) error {
		r, err := tx.LockRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if r.UserID != caller.UserID {
			return core.ErrForbidden
		}

		change(r)
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		rental = r
		return nil
	})
	return rental, err
}
