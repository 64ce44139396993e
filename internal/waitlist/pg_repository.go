package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `id, doctor_id, office_id, patient_id, patient_name, patient_phone,
	procedure_type, procedure_code, estimated_duration_mins, priority,
	preferred_days, preferred_start_mins, preferred_end_mins,
	status, notified_at, confirmed_at, notes, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var officeID, patientID *uuid.UUID
	var procedureCode *string
	var preferredDays []int32
	var notifiedAt, confirmedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.DoctorID,
		&officeID,
		&patientID,
		&e.PatientName,
		&e.PatientPhone,
		&e.ProcedureType,
		&procedureCode,
		&e.EstimatedDurationMins,
		&e.Priority,
		&preferredDays,
		&e.PreferredStartMins,
		&e.PreferredEndMins,
		&e.Status,
		&notifiedAt,
		&confirmedAt,
		&e.Notes,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.OfficeID = officeID
	e.PatientID = patientID
	e.ProcedureCode = procedureCode
	e.NotifiedAt = notifiedAt
	e.ConfirmedAt = confirmedAt
	for _, d := range preferredDays {
		e.PreferredDays = append(e.PreferredDays, time.Weekday(d))
	}

	return &e, nil
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, 0, len(days))
	for _, d := range days {
		out = append(out, int32(d))
	}
	return out
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) Create(ctx context.Context, entry Entry) (*Entry, error) {
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (
			id, doctor_id, office_id, patient_id, patient_name, patient_phone,
			procedure_type, procedure_code, estimated_duration_mins, priority,
			preferred_days, preferred_start_mins, preferred_end_mins,
			status, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'waiting', $14, now())
		RETURNING `+entryColumns+`
	`, id, entry.DoctorID, entry.OfficeID, entry.PatientID, entry.PatientName, entry.PatientPhone,
		entry.ProcedureType, entry.ProcedureCode, entry.EstimatedDurationMins, entry.Priority,
		weekdaysToInts(entry.PreferredDays), entry.PreferredStartMins, entry.PreferredEndMins,
		entry.Notes)

	return scanEntry(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status) ([]Entry, error) {
	filter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		filter = append(filter, string(s))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE doctor_id = $1
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at
	`, doctorID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	return result, rows.Err()
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $2,
		    notified_at  = CASE WHEN $2 = 'notified'  THEN $4 ELSE notified_at  END,
		    confirmed_at = CASE WHEN $2 = 'confirmed' THEN $4 ELSE confirmed_at END
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, to, from, at)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrEntryNotEligible
		}
		return nil, err
	}
	return entry, nil
}

func (r *PgRepository) FindOverdueNotified(ctx context.Context, notifiedBefore time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'notified'
		  AND notified_at IS NOT NULL
		  AND notified_at < $1
	`, notifiedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	return result, rows.Err()
}

func (r *PgRepository) RecordNotification(ctx context.Context, entryID uuid.UUID, slot eventbus.SlotFreed) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO waitlist_notifications (
			entry_id, slot_key, doctor_id, office_id, slot_start, duration_mins, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (entry_id, slot_key) DO NOTHING
	`, entryID, slot.SlotKey(), slot.DoctorID, slot.OfficeID, slot.Start, slot.DurationMins)
	if err != nil {
		return false, fmt.Errorf("record waitlist notification: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

func (r *PgRepository) LatestNotification(ctx context.Context, entryID uuid.UUID) (*eventbus.SlotFreed, error) {
	var slot eventbus.SlotFreed
	err := r.pool.QueryRow(ctx, `
		SELECT doctor_id, office_id, slot_start, duration_mins
		FROM waitlist_notifications
		WHERE entry_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, entryID).Scan(&slot.DoctorID, &slot.OfficeID, &slot.Start, &slot.DurationMins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	return &slot, nil
}
