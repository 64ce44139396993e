package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
	redisclient "github.com/clinicdesk/scheduling-engine/internal/redis"
)

var (
	// ErrSlotTaken means the candidate interval lost to an existing
	// non-cancelled appointment. Callers should re-fetch availability.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrSlotUnavailable means the interval is outside the doctor's working
	// hours, inside a time block, or the day is at capacity.
	ErrSlotUnavailable = errors.New("interval outside doctor availability")
	// ErrBookingContended means the doctor's booking lock is held; retry.
	ErrBookingContended = errors.New("doctor schedule is being modified, please retry")
	ErrPatientRef       = errors.New("exactly one patient reference must be set")
)

// InvalidIntervalError rejects malformed intervals before any lock is taken.
type InvalidIntervalError struct {
	Reason string
}

func (e *InvalidIntervalError) Error() string {
	return "invalid interval: " + e.Reason
}

// bufferWindow widens appointment reads so buffered intervals of neighbouring
// bookings are always loaded. No visit kind carries buffers anywhere near it.
const bufferWindow = 2 * time.Hour

type BookRequest struct {
	DoctorID         uuid.UUID
	OfficeID         *uuid.UUID
	PatientID        *uuid.UUID
	OfflinePatientID *uuid.UUID
	Start            time.Time
	DurationMins     int
	Kind             string
	Actor            Role
}

type Service struct {
	appts  Repository
	avail  availability.Repository
	kinds  *KindRegistry
	locker redisclient.Locker
	bus    *eventbus.Bus
	log    *zap.Logger
}

func NewService(appts Repository, avail availability.Repository, kinds *KindRegistry, locker redisclient.Locker, bus *eventbus.Bus, log *zap.Logger) *Service {
	return &Service{
		appts:  appts,
		avail:  avail,
		kinds:  kinds,
		locker: locker,
		bus:    bus,
		log:    log,
	}
}

// GetAvailability produces the bookable slot view for a doctor and range.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, officeID *uuid.UUID, from, to time.Time, durationMins int) ([]availability.Slot, error) {
	if !to.After(from) {
		return nil, &InvalidIntervalError{Reason: "range end must be after start"}
	}

	days, err := s.avail.GetWeeklyTemplate(ctx, doctorID, officeID)
	if err != nil {
		return nil, fmt.Errorf("load weekly template: %w", err)
	}

	blocks, err := s.avail.ListActiveBlocks(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load time blocks: %w", err)
	}

	booked, starts, err := s.loadBusy(ctx, doctorID, from, to, nil)
	if err != nil {
		return nil, err
	}

	return availability.Generate(availability.GenerateInput{
		Days:         days,
		Blocks:       blocks,
		Booked:       booked,
		BookedStarts: starts,
		From:         from,
		To:           to,
		DurationMins: durationMins,
	}), nil
}

// Book commits an appointment for the requested interval, or explains why it
// cannot. All booking attempts for a doctor run under the doctor's lock, and
// every check is re-run on fresh reads inside the critical section: the
// caller's availability view is advisory only.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	kind := s.kinds.Lookup(req.Kind)

	duration := req.DurationMins
	if duration == 0 {
		duration = kind.DefaultDurationMins
	}
	if duration < availability.MinDurationMins {
		return nil, &InvalidIntervalError{Reason: fmt.Sprintf("duration below %d minutes", availability.MinDurationMins)}
	}
	if req.Start.IsZero() {
		return nil, &InvalidIntervalError{Reason: "start is required"}
	}
	if (req.PatientID == nil) == (req.OfflinePatientID == nil) {
		return nil, ErrPatientRef
	}

	candidate := Interval{
		Start: req.Start,
		End:   req.Start.Add(time.Duration(duration) * time.Minute),
	}

	var created *Appointment

	err := s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		if err := s.checkBookable(lockCtx, req, candidate, kind, nil); err != nil {
			return err
		}

		appt, err := s.appts.Create(lockCtx, Appointment{
			DoctorID:         req.DoctorID,
			OfficeID:         req.OfficeID,
			PatientID:        req.PatientID,
			OfflinePatientID: req.OfflinePatientID,
			Start:            req.Start,
			DurationMins:     duration,
			Status:           StatusPending,
			Kind:             kind.Code,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		// Publishing inside the critical section keeps the event log in
		// booking order for this doctor.
		s.publishChange(lockCtx, appt, "", StatusPending, req.Actor)
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.Time("start", created.Start),
		zap.Int("duration_mins", created.DurationMins),
	)
	return created, nil
}

// checkBookable re-validates availability and conflicts from fresh reads.
func (s *Service) checkBookable(ctx context.Context, req BookRequest, candidate Interval, kind VisitKind, exclude *uuid.UUID) error {
	days, err := s.avail.GetWeeklyTemplate(ctx, req.DoctorID, req.OfficeID)
	if err != nil {
		return fmt.Errorf("load weekly template: %w", err)
	}

	var day *availability.WeekdayTemplate
	for i := range days {
		if days[i].Weekday == candidate.Start.Weekday() && days[i].IsActive {
			day = &days[i]
			break
		}
	}
	if day == nil || !availability.WithinWorkingHours(*day, candidate.Start, candidate.End) {
		return ErrSlotUnavailable
	}

	reservedFrom := candidate.Start.Add(-bufferWindow)
	reservedTo := candidate.End.Add(bufferWindow)

	existing, err := s.appts.ListActiveForDoctor(ctx, req.DoctorID, reservedFrom, reservedTo)
	if err != nil {
		return fmt.Errorf("load existing appointments: %w", err)
	}

	if day.MaxAppointments != nil {
		// The cap counts the whole day, so the buffered read window around the
		// candidate is not enough here.
		y, m, d := candidate.Start.Date()
		dayStart := time.Date(y, m, d, 0, 0, 0, 0, candidate.Start.Location())

		dayAppts, err := s.appts.ListActiveForDoctor(ctx, req.DoctorID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("load same-day appointments: %w", err)
		}

		count := 0
		for _, a := range dayAppts {
			if exclude != nil && a.ID == *exclude {
				continue
			}
			if sameDay(a.Start, candidate.Start) {
				count++
			}
		}
		if count >= *day.MaxAppointments {
			return ErrSlotUnavailable
		}
	}

	blocks, err := s.avail.ListActiveBlocks(ctx, req.DoctorID, reservedFrom, reservedTo)
	if err != nil {
		return fmt.Errorf("load time blocks: %w", err)
	}

	result := DetectConflict(ConflictInput{
		Candidate:            candidate,
		Kind:                 kind,
		Existing:             existing,
		Kinds:                s.kinds,
		Blocks:               blocks,
		ExcludeAppointmentID: exclude,
	})
	if result.Conflicted {
		if result.BlockedByTimeBlock {
			return ErrSlotUnavailable
		}
		return ErrSlotTaken
	}

	return nil
}

// Transition applies a role-checked status change. A compare-and-swap update
// guards against concurrent transitions; the loser gets the fresh state back
// in the error.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, role Role) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	from := appt.Status
	if err := CanTransition(from, to, role); err != nil {
		return nil, err
	}

	updated, err := s.appts.UpdateStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status moved underneath us; report against the fresh state.
			fresh, loadErr := s.appts.GetByID(ctx, id)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, &StateTransitionError{From: fresh.Status, To: to, Role: role}
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.publishChange(ctx, updated, from, to, role)

	if to == StatusCancelled {
		freed := eventbus.SlotFreed{
			DoctorID:     updated.DoctorID,
			OfficeID:     updated.OfficeID,
			Start:        updated.Start,
			DurationMins: updated.DurationMins,
		}
		if _, err := s.bus.Publish(ctx, updated.DoctorID, eventbus.TypeSlotFreed, freed); err != nil {
			s.log.Error("failed to publish slot.freed", zap.Error(err),
				zap.String("appointment_id", updated.ID.String()))
		}
	}

	return updated, nil
}

// Get retrieves one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// MarkNoShows is called by the lifecycle worker: pending/confirmed
// appointments whose end passed the grace period become no_asistio.
func (s *Service) MarkNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	candidates, err := s.appts.FindNoShowCandidates(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find no-show candidates: %w", err)
	}

	marked := 0
	for _, appt := range candidates {
		if _, err := s.Transition(ctx, appt.ID, StatusNoShow, RoleSystem); err != nil {
			var stErr *StateTransitionError
			if errors.As(err, &stErr) {
				continue
			}
			s.log.Error("failed to mark no-show", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		marked++
	}

	return marked, nil
}

// loadBusy converts the doctor's non-cancelled appointments into buffered
// busy intervals for slot generation, plus their unbuffered start times for
// the per-day cap. Kinds allowing concurrency do not occupy the calendar but
// still count against the cap.
func (s *Service) loadBusy(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]availability.Busy, []time.Time, error) {
	existing, err := s.appts.ListActiveForDoctor(ctx, doctorID, from.Add(-bufferWindow), to.Add(bufferWindow))
	if err != nil {
		return nil, nil, fmt.Errorf("load existing appointments: %w", err)
	}

	var busy []availability.Busy
	var starts []time.Time
	for _, a := range existing {
		if exclude != nil && a.ID == *exclude {
			continue
		}
		starts = append(starts, a.Start)
		kind := s.kinds.Lookup(a.Kind)
		if kind.AllowsConcurrency {
			continue
		}
		reserved := ReservedInterval(a, kind)
		busy = append(busy, availability.Busy{Start: reserved.Start, End: reserved.End})
	}
	return busy, starts, nil
}

func (s *Service) publishChange(ctx context.Context, appt *Appointment, from, to Status, actor Role) {
	payload := eventbus.AppointmentChanged{
		AppointmentID: appt.ID,
		OldStatus:     string(from),
		NewStatus:     string(to),
		Actor:         string(actor),
	}
	if _, err := s.bus.Publish(ctx, appt.DoctorID, eventbus.TypeAppointmentChanged, payload); err != nil {
		s.log.Error("failed to publish appointment.changed", zap.Error(err),
			zap.String("appointment_id", appt.ID.String()))
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
