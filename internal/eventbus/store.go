package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable ordered append log backing the bus.
type Store interface {
	Append(ctx context.Context, doctorID uuid.UUID, eventType string, payload any) (*Event, error)
	// ListAfter returns up to limit events for the doctor with seq greater
	// than afterSeq, in append order. External consumers poll this.
	ListAfter(ctx context.Context, doctorID uuid.UUID, afterSeq int64, limit int) ([]Event, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore appends to the schedule_events table. The bigserial seq gives the
// per-doctor commit ordering the bus relies on.
type PgStore struct {
	pool querier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func newPgStoreWithQuerier(q querier) *PgStore {
	return &PgStore{pool: q}
}

func (s *PgStore) Append(ctx context.Context, doctorID uuid.UUID, eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO schedule_events (doctor_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING seq, doctor_id, event_type, payload, created_at
	`, doctorID, eventType, data)

	return scanEvent(row)
}

func (s *PgStore) ListAfter(ctx context.Context, doctorID uuid.UUID, afterSeq int64, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, doctor_id, event_type, payload, created_at
		FROM schedule_events
		WHERE doctor_id = $1
		  AND seq > $2
		ORDER BY seq
		LIMIT $3
	`, doctorID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ev)
	}

	return result, rows.Err()
}

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	var payload []byte

	err := row.Scan(&ev.Seq, &ev.DoctorID, &ev.Type, &payload, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}

	ev.Payload = append(json.RawMessage(nil), payload...)
	return &ev, nil
}
