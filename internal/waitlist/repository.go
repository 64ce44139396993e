package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
)

var (
	ErrEntryNotFound = errors.New("waitlist entry not found")
	// ErrEntryNotEligible means the entry is terminal or not in the expected
	// status for the requested advance.
	ErrEntryNotEligible = errors.New("waitlist entry not eligible")
)

// Repository contains all DB interactions needed by the waitlist service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Create(ctx context.Context, entry Entry) (*Entry, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status) ([]Entry, error)

	// TransitionStatus is compare-and-swap on status; it stamps notified_at
	// or confirmed_at when moving into those states and reports
	// ErrEntryNotEligible when the stored status no longer equals from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error)

	// FindOverdueNotified returns entries notified before the cutoff and
	// still unconfirmed.
	FindOverdueNotified(ctx context.Context, notifiedBefore time.Time) ([]Entry, error)

	// RecordNotification stores which freed slot an entry was notified for,
	// keyed (entry_id, slot_key). Returns false when the pair already
	// exists, which keeps promotion idempotent per freed slot.
	RecordNotification(ctx context.Context, entryID uuid.UUID, slot eventbus.SlotFreed) (bool, error)

	// LatestNotification returns the freed slot the entry was last notified
	// for, so expiry can re-run promotion for that slot.
	LatestNotification(ctx context.Context, entryID uuid.UUID) (*eventbus.SlotFreed, error)
}
