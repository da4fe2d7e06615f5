package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

func newActive() *model.Rental {
	return model.NewRental(uuid.New(), uuid.New(), 10, decimal.NewFromInt(10), time.Now())
}

func TestCompleteStampsEnd(t *testing.T) {
	r := newActive()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, Complete(context.Background(), r, model.EndedByUser, at))

	assert.Equal(t, model.RentalCompleted, r.Status)
	require.NotNil(t, r.EndedAt)
	assert.Equal(t, at, *r.EndedAt)
	assert.Equal(t, model.EndedByUser, r.EndedBy)
}

func TestCloseByAdminCancels(t *testing.T) {
	r := newActive()
	require.NoError(t, Close(context.Background(), r, model.EndedByAdmin, time.Now()))
	assert.Equal(t, model.RentalCancelled, r.Status)
}

func TestClosedRentalCannotCloseAgain(t *testing.T) {
	r := newActive()
	first := time.Now()
	require.NoError(t, Complete(context.Background(), r, model.EndedBySystem, first))

	err := Cancel(context.Background(), r, model.EndedByAdmin, first.Add(time.Minute))
	assert.ErrorIs(t, err, core.ErrRentalNotActive)
	assert.Equal(t, model.RentalCompleted, r.Status)
	assert.Equal(t, first, *r.EndedAt)
	assert.Equal(t, model.EndedBySystem, r.EndedBy)
}
