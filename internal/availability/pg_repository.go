package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanWeekdayTemplate(row pgx.Row) (*WeekdayTemplate, error) {
	var t WeekdayTemplate
	var officeID *uuid.UUID
	var weekday int
	var intervals []byte
	var maxAppointments *int

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&officeID,
		&weekday,
		&t.IsWorkingDay,
		&intervals,
		&t.DefaultDurationMins,
		&t.BufferAfterMins,
		&maxAppointments,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.OfficeID = officeID
	t.Weekday = time.Weekday(weekday)
	t.MaxAppointments = maxAppointments
	if len(intervals) > 0 {
		if err := json.Unmarshal(intervals, &t.Intervals); err != nil {
			return nil, fmt.Errorf("decode template intervals: %w", err)
		}
	}

	return &t, nil
}

func scanTimeBlock(row pgx.Row) (*TimeBlock, error) {
	var b TimeBlock
	var officeID *uuid.UUID
	var description *string
	var recurrence []byte

	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&officeID,
		&b.Kind,
		&b.Title,
		&description,
		&b.Start,
		&b.End,
		&b.AllDay,
		&recurrence,
		&b.IsActive,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.OfficeID = officeID
	b.Description = description
	if len(recurrence) > 0 {
		var rec Recurrence
		if err := json.Unmarshal(recurrence, &rec); err != nil {
			return nil, fmt.Errorf("decode block recurrence: %w", err)
		}
		b.Recurrence = &rec
	}

	return &b, nil
}

// Interface methods

func (r *PgRepository) GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID, officeID *uuid.UUID) ([]WeekdayTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, office_id, weekday, is_working_day, intervals,
		       default_duration_mins, buffer_after_mins, max_appointments,
		       is_active, created_at, updated_at
		FROM weekly_templates
		WHERE doctor_id = $1
		  AND (office_id = $2 OR ($2 IS NULL AND office_id IS NULL))
		ORDER BY weekday, updated_at DESC
	`, doctorID, officeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeekdayTemplate
	for rows.Next() {
		t, err := scanWeekdayTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	return result, rows.Err()
}

func (r *PgRepository) UpsertWeekdayTemplate(ctx context.Context, day WeekdayTemplate) (*WeekdayTemplate, error) {
	intervals, err := json.Marshal(day.Intervals)
	if err != nil {
		return nil, fmt.Errorf("encode template intervals: %w", err)
	}

	id := day.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO weekly_templates (
			id, doctor_id, office_id, weekday, is_working_day, intervals,
			default_duration_mins, buffer_after_mins, max_appointments,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (doctor_id, office_key, weekday) DO UPDATE SET
			is_working_day        = EXCLUDED.is_working_day,
			intervals             = EXCLUDED.intervals,
			default_duration_mins = EXCLUDED.default_duration_mins,
			buffer_after_mins     = EXCLUDED.buffer_after_mins,
			max_appointments      = EXCLUDED.max_appointments,
			is_active             = EXCLUDED.is_active,
			updated_at            = now()
		RETURNING id, doctor_id, office_id, weekday, is_working_day, intervals,
		          default_duration_mins, buffer_after_mins, max_appointments,
		          is_active, created_at, updated_at
	`, id, day.DoctorID, day.OfficeID, int(day.Weekday), day.IsWorkingDay, intervals,
		day.DefaultDurationMins, day.BufferAfterMins, day.MaxAppointments, day.IsActive)

	return scanWeekdayTemplate(row)
}

func (r *PgRepository) CreateBlock(ctx context.Context, block TimeBlock) (*TimeBlock, error) {
	var recurrence []byte
	if block.Recurrence != nil {
		var err error
		recurrence, err = json.Marshal(block.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("encode block recurrence: %w", err)
		}
	}

	id := block.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_blocks (
			id, doctor_id, office_id, kind, title, description,
			start_at, end_at, all_day, recurrence, is_active, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, now())
		RETURNING id, doctor_id, office_id, kind, title, description,
		          start_at, end_at, all_day, recurrence, is_active, created_at
	`, id, block.DoctorID, block.OfficeID, block.Kind, block.Title, block.Description,
		block.Start, block.End, block.AllDay, recurrence)

	return scanTimeBlock(row)
}

func (r *PgRepository) ListActiveBlocks(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, office_id, kind, title, description,
		       start_at, end_at, all_day, recurrence, is_active, created_at
		FROM time_blocks
		WHERE doctor_id = $1
		  AND is_active = true
		  AND start_at < $3
		  AND (end_at > $2 OR recurrence IS NOT NULL)
		ORDER BY start_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeBlock
	for rows.Next() {
		b, err := scanTimeBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	return result, rows.Err()
}

func (r *PgRepository) DeactivateBlock(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE time_blocks
		SET is_active = false
		WHERE id = $1 AND is_active = true
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate time block: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}
