package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

const rentalColumns = `id, user_id, car_id, started_at, duration_minutes, extended_minutes, status,
	ended_at, ended_by, cost::text, issue_report, rating, feedback`

func scanRental(row pgx.Row) (*model.Rental, error) {
	var (
		r       model.Rental
		cost    string
		endedBy string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.CarID, &r.StartedAt, &r.DurationMinutes, &r.ExtendedMinutes, &r.Status,
		&r.EndedAt, &endedBy, &cost, &r.IssueReport, &r.Rating, &r.Feedback)
	if err != nil {
		return nil, err
	}
	r.EndedBy = model.EndedBy(endedBy)
	if r.Cost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("rental %s: bad cost %q: %w", r.ID, cost, err)
	}
	return &r, nil
}

func collectRentals(rows pgx.Rows) ([]*model.Rental, error) {
	defer rows.Close()

	var rentals []*model.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

func (t *tx) CreateRental(ctx context.Context, r *model.Rental) error {
	const q = `
		INSERT INTO rentals (id, user_id, car_id, started_at, duration_minutes, extended_minutes, status, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric)`

	_, err := t.tx.Exec(ctx, q, r.ID, r.UserID, r.CarID, r.StartedAt, r.DurationMinutes, r.ExtendedMinutes,
		string(r.Status), r.Cost.String())
	if isUniqueViolation(err) {
		return core.ErrCarUnavailable.Withf("car %s already has an active rental", r.CarID)
	}
	if err != nil {
		return fmt.Errorf("insert rental: %w", err)
	}
	return nil
}

func (t *tx) LockRental(ctx context.Context, id uuid.UUID) (*model.Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 FOR UPDATE`

	r, err := scanRental(t.tx.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "rental", id)
	}
	return r, nil
}

func (t *tx) LockActiveRentals(ctx context.Context) ([]*model.Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE status = 'active' ORDER BY started_at FOR UPDATE`

	rows, err := t.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lock active rentals: %w", err)
	}
	return collectRentals(rows)
}

func (t *tx) LockActiveRentalsForUser(ctx context.Context, userID uuid.UUID) ([]*model.Rental, error) {
	const q = `
		SELECT ` + rentalColumns + `
		FROM rentals
		WHERE user_id = $1
		AND status = 'active'
		ORDER BY started_at DESC
		FOR UPDATE`

	rows, err := t.tx.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("lock active rentals of user %s: %w", userID, err)
	}
	return collectRentals(rows)
}

func (t *tx) ActiveRentalForCar(ctx context.Context, carID uuid.UUID) (*model.Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE car_id = $1 AND status = 'active'`

	r, err := scanRental(t.tx.QueryRow(ctx, q, carID))
	if err != nil {
		return nil, notFound(err, "active rental of car", carID)
	}
	return r, nil
}

func (t *tx) ListRentalsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Rental, error) {
	const q = `
		SELECT ` + rentalColumns + `
		FROM rentals
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := t.tx.Query(ctx, q, userID, lim, offset)
	if err != nil {
		return nil, fmt.Errorf("list rentals of user %s: %w", userID, err)
	}

	rentals, err := collectRentals(rows)
	if err != nil {
		return nil, err
	}
	if rentals == nil {
		rentals = []*model.Rental{}
	}
	return rentals, nil
}

func (t *tx) UpdateRental(ctx context.Context, r *model.Rental) error {
	const q = `
		UPDATE rentals
		SET duration_minutes = $2,
			extended_minutes = $3,
			cost = $4::numeric,
			issue_report = $5,
			rating = $6,
			feedback = $7
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, q, r.ID, r.DurationMinutes, r.ExtendedMinutes, r.Cost.String(),
		r.IssueReport, r.Rating, r.Feedback)
	if err != nil {
		return fmt.Errorf("update rental %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound.Withf("rental %s not found", r.ID)
	}
	return nil
}

func (t *tx) CloseRental(ctx context.Context, r *model.Rental) (bool, error) {
	const q = `
		UPDATE rentals
		SET status = $2, ended_at = $3, ended_by = $4
		WHERE id = $1
		AND status = 'active'`

	tag, err := t.tx.Exec(ctx, q, r.ID, string(r.Status), r.EndedAt, string(r.EndedBy))
	if err != nil {
		return false, fmt.Errorf("close rental %s: %w", r.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}
