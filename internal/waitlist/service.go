package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
)

var (
	ErrInvalidEntry = errors.New("invalid waitlist entry")
)

// Service drives the waitlist: intake, matching waiting patients to freed
// slots, the notify/confirm/expire lifecycle, and manual status advances.
type Service struct {
	repo Repository
	bus  *eventbus.Bus
	log  *zap.Logger
	now  func() time.Time
}

func NewService(repo Repository, bus *eventbus.Bus, log *zap.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log,
		now:  time.Now,
	}
}

// Add validates and stores a new waiting entry.
func (s *Service) Add(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor is required", ErrInvalidEntry)
	}
	if entry.PatientName == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidEntry)
	}
	if entry.EstimatedDurationMins < availability.MinDurationMins {
		return nil, fmt.Errorf("%w: estimated duration below %d minutes", ErrInvalidEntry, availability.MinDurationMins)
	}
	if !ValidPriority(entry.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidEntry, entry.Priority)
	}
	if (entry.PreferredStartMins == nil) != (entry.PreferredEndMins == nil) {
		return nil, fmt.Errorf("%w: preferred time range needs both bounds", ErrInvalidEntry)
	}

	entry.Status = StatusWaiting
	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("create waitlist entry: %w", err)
	}
	return created, nil
}

// List returns a doctor's entries, optionally filtered by status.
func (s *Service) List(ctx context.Context, doctorID uuid.UUID, statuses []Status) ([]Entry, error) {
	entries, err := s.repo.ListByDoctor(ctx, doctorID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	return entries, nil
}

// HandleFreedSlotEvent is the bus subscription entry point for slot.freed.
func (s *Service) HandleFreedSlotEvent(ctx context.Context, ev eventbus.Event) error {
	var slot eventbus.SlotFreed
	if err := json.Unmarshal(ev.Payload, &slot); err != nil {
		return fmt.Errorf("decode slot.freed payload: %w", err)
	}
	_, err := s.PromoteForSlot(ctx, slot)
	return err
}

// PromoteForSlot notifies the top-ranked compatible waiting entry for a freed
// interval. It never auto-books: the entry moves to notified and an external
// collaborator contacts the patient.
//
// Safe to re-invoke for the same freed slot: already-notified entries are no
// longer waiting and the (entry, slot) notification record is unique, so no
// entry is ever notified twice. Returns (nil, nil) when no compatible entry
// exists — a normal negative outcome, not a fault.
func (s *Service) PromoteForSlot(ctx context.Context, slot eventbus.SlotFreed) (*Entry, error) {
	waiting, err := s.repo.ListByDoctor(ctx, slot.DoctorID, []Status{StatusWaiting})
	if err != nil {
		return nil, fmt.Errorf("load waiting entries: %w", err)
	}

	candidates := Match(slot, waiting)
	if len(candidates) == 0 {
		s.log.Info("no compatible waitlist entry for freed slot",
			zap.String("doctor_id", slot.DoctorID.String()),
			zap.Time("start", slot.Start),
			zap.Int("duration_mins", slot.DurationMins),
		)
		return nil, nil
	}

	now := s.now()
	for _, candidate := range candidates {
		recorded, err := s.repo.RecordNotification(ctx, candidate.ID, slot)
		if err != nil {
			return nil, err
		}
		if !recorded {
			// Already notified for this exact slot earlier.
			continue
		}

		entry, err := s.repo.TransitionStatus(ctx, candidate.ID, StatusWaiting, StatusNotified, now)
		if err != nil {
			if errors.Is(err, ErrEntryNotEligible) {
				// Lost a race with a concurrent promotion or cancellation.
				continue
			}
			return nil, fmt.Errorf("notify waitlist entry %s: %w", candidate.ID, err)
		}

		payload := eventbus.WaitlistNotified{
			EntryID:      entry.ID,
			OfficeID:     slot.OfficeID,
			Start:        slot.Start,
			DurationMins: slot.DurationMins,
		}
		if _, err := s.bus.Emit(ctx, slot.DoctorID, eventbus.TypeWaitlistNotified, payload); err != nil {
			s.log.Warn("failed to emit waitlist.notified", zap.Error(err))
		}

		s.log.Info("waitlist entry notified",
			zap.String("entry_id", entry.ID.String()),
			zap.String("priority", string(entry.Priority)),
			zap.Time("slot_start", slot.Start),
		)
		return entry, nil
	}

	return nil, nil
}

// Advance applies a caller-requested status change (confirm, cancel, ...).
func (s *Service) Advance(ctx context.Context, id uuid.UUID, to Status) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanAdvance(entry.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrEntryNotEligible, entry.Status, to)
	}

	updated, err := s.repo.TransitionStatus(ctx, id, entry.Status, to, s.now())
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpireOverdue moves notified entries past the confirmation window to
// expired and retries promotion for each freed slot with the next candidate.
// The retry is bounded by the remaining waiting entries; an exhausted
// waitlist simply ends the chain.
func (s *Service) ExpireOverdue(ctx context.Context, confirmTTL time.Duration) (int, error) {
	cutoff := s.now().Add(-confirmTTL)
	overdue, err := s.repo.FindOverdueNotified(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue notified entries: %w", err)
	}

	expired := 0
	for _, entry := range overdue {
		if _, err := s.repo.TransitionStatus(ctx, entry.ID, StatusNotified, StatusExpired, s.now()); err != nil {
			if errors.Is(err, ErrEntryNotEligible) {
				continue
			}
			return expired, fmt.Errorf("expire waitlist entry %s: %w", entry.ID, err)
		}
		expired++

		if _, err := s.bus.Emit(ctx, entry.DoctorID, eventbus.TypeWaitlistExpired, eventbus.WaitlistExpired{EntryID: entry.ID}); err != nil {
			s.log.Warn("failed to emit waitlist.expired", zap.Error(err))
		}

		slot, err := s.repo.LatestNotification(ctx, entry.ID)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				continue
			}
			return expired, err
		}

		if _, err := s.PromoteForSlot(ctx, *slot); err != nil {
			s.log.Warn("re-promotion after expiry failed",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err),
			)
		}
	}

	return expired, nil
}
