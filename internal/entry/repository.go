package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, time, feeding_amount, sensor, glucometer_reading, drip, nutrition_type, extra, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Time, &e.FeedingAmount, &e.Sensor, &e.GlucometerReading,
		&e.Drip, &e.NutritionType, &e.Extra, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		ORDER BY time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func (r *Repository) Create(ctx context.Context, input EntryInput) (Entry, error) {
	e, err := newEntry(input, time.Now().UTC())
	if err != nil {
		return Entry{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Time, e.FeedingAmount, e.Sensor, e.GlucometerReading, e.Drip, e.NutritionType, e.Extra, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	return e, nil
}

// CreateBulk inserts every input in one transaction; nothing is stored if any insert fails.
func (r *Repository) CreateBulk(ctx context.Context, inputs []EntryInput) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, input := range inputs {
		e, err := newEntry(input, now)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Time, e.FeedingAmount, e.Sensor, e.GlucometerReading,
			e.Drip, e.NutritionType, e.Extra, e.CreatedAt, e.UpdatedAt); err != nil {
			return 0, fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}

	return len(inputs), nil
}

func (r *Repository) Update(ctx context.Context, id string, input EntryInput) (Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
		UPDATE entries
		SET time = $2, feeding_amount = $3, sensor = $4, glucometer_reading = $5,
			drip = $6, nutrition_type = $7, extra = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, input.parsedTime, input.FeedingAmount, input.Sensor, input.GlucometerReading,
		input.Drip, input.NutritionType, input.Extra, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("update entry: %w", err)
	}

	return e, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func newEntry(input EntryInput, now time.Time) (Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	return Entry{
		ID:                id.String(),
		Time:              input.parsedTime,
		FeedingAmount:     input.FeedingAmount,
		Sensor:            input.Sensor,
		GlucometerReading: input.GlucometerReading,
		Drip:              input.Drip,
		NutritionType:     input.NutritionType,
		Extra:             input.Extra,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
