package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

func (t *tx) LockUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `
		SELECT id, balance::text, role
		FROM users
		WHERE id = $1
		FOR UPDATE`

	var (
		u       model.User
		balance string
	)
	if err := t.tx.QueryRow(ctx, q, id).Scan(&u.ID, &balance, &u.Role); err != nil {
		return nil, notFound(err, "user", id)
	}

	var err error
	if u.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("user %s: bad balance %q: %w", id, balance, err)
	}
	return &u, nil
}

func (t *tx) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	// Guard: only deduct if sufficient.
	const q = `
		UPDATE users
		SET balance = balance - $2::numeric
		WHERE id = $1
		AND balance >= $2::numeric`

	tag, err := t.tx.Exec(ctx, q, id, amount.String())
	if err != nil {
		return fmt.Errorf("debit user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrInsufficientFunds.Withf("balance of user %s is below %s", id, amount)
	}
	return nil
}
