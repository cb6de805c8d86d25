package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// maxConflictRetries bounds how often a lost store race is retried by
// re-running the full check-then-commit sequence before the failure is
// surfaced as a business error.
const maxConflictRetries = 3

// Clock supplies the current time.  It is injected so lead-time and
// overlap decisions are deterministic in tests.
type Clock func() time.Time

// Engine orchestrates the booking lifecycle over a Store.  It owns the
// state machine CONFIRMED -> {CANCELLED | COMPLETED} and guarantees the
// two core invariants: a station's availability counter always matches
// its count of active bookings and stays within [0, total_slots], and a
// user never holds two time-overlapping active bookings.
type Engine struct {
	store  Store
	clock  Clock
	logger zerolog.Logger
	locks  userLocks
}

// NewEngine constructs an Engine using the wall clock.
func NewEngine(store Store, logger zerolog.Logger) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	return &Engine{
		store:  store,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock replaces the engine's time source and returns the engine.
// Intended for tests.
func (e *Engine) WithClock(c Clock) *Engine {
	e.clock = c
	return e
}

// CancelResult reports the outcome of a cancellation.  SlotReleased is
// false when the booking was cancelled but the availability restore on
// its station failed; the cancellation itself still succeeded and the
// counter needs reconciliation.
type CancelResult struct {
	Booking      *model.Booking
	SlotReleased bool
}

// Create validates a booking request, reserves a slot at the station
// and persists a CONFIRMED booking.  It returns the persisted booking
// together with the station it was priced against.
//
// The overlap check and the insert are serialized per user; slot
// accounting is a single atomic conditional update in the store.  When
// the insert fails after a slot was reserved, the slot is released
// again as a compensating step.  A store conflict (a concurrent insert
// for the same user winning the race despite the local lock, e.g. from
// another process) is retried up to maxConflictRetries times and then
// surfaced as ErrOverlappingBooking.
func (e *Engine) Create(ctx context.Context, userID, stationID uint64, start, end time.Time) (*model.Booking, *model.Station, error) {
	if !end.After(start) {
		return nil, nil, ErrInvalidWindow
	}

	mu := e.locks.forUser(userID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; ; attempt++ {
		b, st, err := e.tryCreate(ctx, userID, stationID, start, end)
		if err == nil {
			return b, st, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, nil, err
		}
		if attempt >= maxConflictRetries {
			e.logger.Warn().
				Uint64("user_id", userID).
				Uint64("station_id", stationID).
				Int("attempts", attempt).
				Msg("booking create retries exhausted on store conflict")
			return nil, nil, ErrOverlappingBooking
		}
	}
}

// tryCreate runs one check-then-commit pass.  A returned ErrConflict
// means the pass lost a race and may be retried; the reserved slot has
// already been released by then.
func (e *Engine) tryCreate(ctx context.Context, userID, stationID uint64, start, end time.Time) (*model.Booking, *model.Station, error) {
	st, err := e.store.GetStation(ctx, stationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrStationNotFound
		}
		return nil, nil, fmt.Errorf("load station: %w", err)
	}

	active, err := e.store.ActiveReservations(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load active bookings: %w", err)
	}
	for i := range active {
		if Overlaps(start, end, active[i].StartTime, active[i].EndTime) {
			return nil, nil, ErrOverlappingBooking
		}
	}

	slot, err := e.store.ReserveSlot(ctx, stationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrStationNotFound
		}
		if errors.Is(err, ErrCapacityExhausted) {
			return nil, nil, ErrCapacityExhausted
		}
		return nil, nil, fmt.Errorf("reserve slot: %w", err)
	}

	b := &model.Booking{
		UserID:           userID,
		StationID:        stationID,
		StartTime:        start.UTC(),
		EndTime:          end.UTC(),
		DurationMinutes:  DurationMinutes(start, end),
		SlotNumber:       slot,
		Status:           model.StatusConfirmed,
		TotalAmountCents: TotalAmountCents(start, end, st.PricePerHourCents),
		PaymentStatus:    model.PaymentPending,
	}
	if err := e.store.CreateBooking(ctx, b); err != nil {
		// The slot was already taken from the pool; hand it back.  A
		// failure here is logged, not returned, so it cannot mask the
		// insert error.
		if relErr := e.store.ReleaseSlot(ctx, stationID); relErr != nil {
			e.logger.Error().Err(relErr).
				Uint64("station_id", stationID).
				Msg("compensating slot release failed after booking insert error")
		}
		if errors.Is(err, ErrConflict) {
			return nil, nil, ErrConflict
		}
		return nil, nil, fmt.Errorf("persist booking: %w", err)
	}
	return b, st, nil
}

// Cancel transitions a booking owned by userID to CANCELLED and hands
// its slot back to the station pool.  A missing station or failed
// counter restore does not fail the cancellation; it is logged and
// reported through CancelResult.SlotReleased.
func (e *Engine) Cancel(ctx context.Context, bookingID, userID uint64) (*CancelResult, error) {
	b, err := e.store.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if model.IsTerminalStatus(b.Status) {
		return nil, ErrAlreadyTerminal
	}
	if !CancellableAt(e.clock(), b.StartTime) {
		return nil, ErrCancellationWindowClosed
	}

	if err := e.store.MarkCancelled(ctx, bookingID); err != nil {
		if errors.Is(err, ErrConflict) {
			// A concurrent cancel won; the slot was released exactly once
			// by the winner.
			return nil, ErrAlreadyTerminal
		}
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}
	b.Status = model.StatusCancelled

	res := &CancelResult{Booking: b, SlotReleased: true}
	if err := e.store.ReleaseSlot(ctx, b.StationID); err != nil {
		res.SlotReleased = false
		e.logger.Warn().Err(err).
			Uint64("booking_id", b.ID).
			Uint64("station_id", b.StationID).
			Msg("availability restore failed after cancellation; counter needs reconciliation")
	}
	return res, nil
}
