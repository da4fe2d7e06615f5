package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
)

const carColumns = `id, name, description, location, device_id, stream_id, status,
	price_per_minute::text, battery_level, signal_strength, updated_at`

func scanCar(row pgx.Row) (*model.Car, error) {
	var (
		c     model.Car
		price string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Location, &c.DeviceID, &c.StreamID, &c.Status,
		&price, &c.BatteryLevel, &c.SignalStrength, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.PricePerMinute, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("car %s: bad price %q: %w", c.ID, price, err)
	}
	return &c, nil
}

func collectCars(rows pgx.Rows) ([]*model.Car, error) {
	defer rows.Close()

	var cars []*model.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

func (t *tx) LockCar(ctx context.Context, id uuid.UUID) (*model.Car, error) {
	const q = `SELECT ` + carColumns + ` FROM cars WHERE id = $1 FOR UPDATE`

	c, err := scanCar(t.tx.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "car", id)
	}
	return c, nil
}

func (t *tx) GetCarByDevice(ctx context.Context, deviceID string) (*model.Car, error) {
	const q = `SELECT ` + carColumns + ` FROM cars WHERE device_id = $1`

	c, err := scanCar(t.tx.QueryRow(ctx, q, deviceID))
	if err != nil {
		return nil, notFound(err, "device", deviceID)
	}
	return c, nil
}

func (t *tx) ListCars(ctx context.Context) ([]*model.Car, error) {
	const q = `SELECT ` + carColumns + ` FROM cars ORDER BY name`

	rows, err := t.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return collectCars(rows)
}

func (t *tx) LockBusyCars(ctx context.Context) ([]*model.Car, error) {
	const q = `SELECT ` + carColumns + ` FROM cars WHERE status = 'busy' ORDER BY id FOR UPDATE`

	rows, err := t.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lock busy cars: %w", err)
	}
	return collectCars(rows)
}

func (t *tx) TransitionCar(ctx context.Context, id uuid.UUID, from, to model.CarStatus) (bool, error) {
	const q = `
		UPDATE cars
		SET status = $3, updated_at = now()
		WHERE id = $1
		AND status = $2`

	tag, err := t.tx.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("car %s %s->%s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *tx) UpdateCarTelemetry(ctx context.Context, deviceID string, battery, signal int) (bool, error) {
	const q = `
		UPDATE cars
		SET battery_level = $2, signal_strength = $3, updated_at = now()
		WHERE device_id = $1`

	tag, err := t.tx.Exec(ctx, q, deviceID, battery, signal)
	if err != nil {
		return false, fmt.Errorf("telemetry for %s: %w", deviceID, err)
	}
	return tag.RowsAffected() == 1, nil
}
