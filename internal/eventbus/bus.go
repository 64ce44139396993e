package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes one event. Handlers run synchronously inside Publish, in
// the order events were committed for the doctor.
type Handler func(ctx context.Context, ev Event) error

// Bus couples the durable append log with in-process subscribers. Delivery is
// at-least-once: a failing handler is logged, never rolled back — the event
// stays in the store and external consumers re-read it via ListAfter.
//
// Publish holds a per-doctor mutex across append and dispatch, so subscribers
// observe a single doctor's mutations in commit order. No ordering is
// promised across doctors.
type Bus struct {
	store Store
	log   *zap.Logger

	mu   sync.RWMutex
	subs map[string][]Handler

	doctorMu sync.Map // uuid.UUID -> *sync.Mutex
}

func NewBus(store Store, log *zap.Logger) *Bus {
	return &Bus{
		store: store,
		log:   log,
		subs:  map[string][]Handler{},
	}
}

// Subscribe registers a handler for one event type. Not safe to call after
// publishing has started from other goroutines.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// Publish durably appends the event and fans it out to subscribers. The
// per-doctor mutex spans append and dispatch, which is what keeps a single
// doctor's events flowing to subscribers in commit order. Handlers must not
// call Publish for the same doctor; derived events go through Emit.
func (b *Bus) Publish(ctx context.Context, doctorID uuid.UUID, eventType string, payload any) (*Event, error) {
	lock := b.lockFor(doctorID)
	lock.Lock()
	defer lock.Unlock()

	ev, err := b.store.Append(ctx, doctorID, eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("append %s event: %w", eventType, err)
	}

	b.mu.RLock()
	handlers := b.subs[eventType]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, *ev); err != nil {
			b.log.Warn("event subscriber failed",
				zap.String("event_type", eventType),
				zap.Int64("seq", ev.Seq),
				zap.String("doctor_id", doctorID.String()),
				zap.Error(err),
			)
		}
	}

	return ev, nil
}

// Emit appends without in-process dispatch. Safe to call from inside a
// handler; the event is still durable and visible to polling consumers.
func (b *Bus) Emit(ctx context.Context, doctorID uuid.UUID, eventType string, payload any) (*Event, error) {
	ev, err := b.store.Append(ctx, doctorID, eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("append %s event: %w", eventType, err)
	}
	return ev, nil
}

// ListAfter exposes the durable log for external consumers.
func (b *Bus) ListAfter(ctx context.Context, doctorID uuid.UUID, afterSeq int64, limit int) ([]Event, error) {
	return b.store.ListAfter(ctx, doctorID, afterSeq, limit)
}

func (b *Bus) lockFor(doctorID uuid.UUID) *sync.Mutex {
	if lock, ok := b.doctorMu.Load(doctorID); ok {
		return lock.(*sync.Mutex)
	}
	lock, _ := b.doctorMu.LoadOrStore(doctorID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
