package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// memStore is an in-memory Store with the same atomicity guarantees the
// MySQL implementation provides: slot accounting and the overlap
// recheck both run under one lock.  createErr and releaseErr inject
// failures for the compensation paths.
type memStore struct {
	mu           sync.Mutex
	stations     map[uint64]*model.Station
	bookings     map[uint64]*model.Booking
	nextID       uint64
	createErr    func(b *model.Booking) error
	releaseErr   error
	releaseCalls int
	reserveCalls int
}

func newMemStore(stations ...*model.Station) *memStore {
	s := &memStore{
		stations: make(map[uint64]*model.Station),
		bookings: make(map[uint64]*model.Booking),
	}
	for _, st := range stations {
		s.stations[st.ID] = st
	}
	return s
}

func (s *memStore) GetStation(_ context.Context, id uint64) (*model.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok || !st.IsActive {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) ReserveSlot(_ context.Context, stationID uint64) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserveCalls++
	st, ok := s.stations[stationID]
	if !ok {
		return 0, ErrNotFound
	}
	if st.AvailableSlots == 0 {
		return 0, ErrCapacityExhausted
	}
	slot := SlotNumber(st.TotalSlots, st.AvailableSlots)
	st.AvailableSlots--
	return slot, nil
}

func (s *memStore) ReleaseSlot(_ context.Context, stationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCalls++
	if s.releaseErr != nil {
		return s.releaseErr
	}
	st, ok := s.stations[stationID]
	if !ok {
		return ErrNotFound
	}
	if st.AvailableSlots < st.TotalSlots {
		st.AvailableSlots++
	}
	return nil
}

func (s *memStore) ActiveReservations(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.UserID == userID && model.IsActiveStatus(b.Status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		if err := s.createErr(b); err != nil {
			return err
		}
	}
	for _, existing := range s.bookings {
		if existing.UserID == b.UserID && model.IsActiveStatus(existing.Status) &&
			Overlaps(b.StartTime, b.EndTime, existing.StartTime, existing.EndTime) {
			return ErrConflict
		}
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memStore) GetBookingForUser(_ context.Context, bookingID, userID uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) MarkCancelled(_ context.Context, bookingID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if !model.IsActiveStatus(b.Status) {
		return ErrConflict
	}
	b.Status = model.StatusCancelled
	return nil
}

func (s *memStore) available(stationID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stations[stationID].AvailableSlots
}

func (s *memStore) activeCount(stationID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.StationID == stationID && model.IsActiveStatus(b.Status) {
			n++
		}
	}
	return n
}

func testStation(id uint64, slots uint32) *model.Station {
	return &model.Station{
		ID:                id,
		Name:              "Riverside Supercharge",
		TotalSlots:        slots,
		AvailableSlots:    slots,
		ChargingSpeed:     model.SpeedFast,
		PricePerHourCents: 500,
		IsActive:          true,
	}
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store Store) *Engine {
	return NewEngine(store, zerolog.Nop()).WithClock(func() time.Time { return testNow })
}

func TestCreateConfirmsBooking(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)

	start := testNow.Add(2 * time.Hour)
	b, st, err := eng.Create(context.Background(), 7, 1, start, start.Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, st)

	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, uint32(1), b.SlotNumber)
	assert.Equal(t, uint32(90), b.DurationMinutes)
	assert.Equal(t, uint64(750), b.TotalAmountCents) // 1.5h at $5.00/h
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, uint32(3), store.available(1))
}

func TestCreateInvalidWindow(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)

	start := testNow.Add(2 * time.Hour)
	_, _, err := eng.Create(context.Background(), 7, 1, start, start)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, _, err = eng.Create(context.Background(), 7, 1, start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Equal(t, uint32(4), store.available(1))
}

func TestCreateStationNotFound(t *testing.T) {
	eng := newTestEngine(newMemStore())

	start := testNow.Add(2 * time.Hour)
	_, _, err := eng.Create(context.Background(), 7, 99, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestCreateRejectsOverlap(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	ten := testNow.Add(22 * time.Hour) // 10:00 next day
	_, _, err := eng.Create(ctx, 7, 1, ten, ten.Add(time.Hour))
	require.NoError(t, err)

	// [10:30, 11:30) overlaps [10:00, 11:00).
	_, _, err = eng.Create(ctx, 7, 1, ten.Add(30*time.Minute), ten.Add(90*time.Minute))
	assert.ErrorIs(t, err, ErrOverlappingBooking)
	assert.Equal(t, uint32(3), store.available(1))

	// [11:00, 12:00) touches the boundary and is allowed.
	_, _, err = eng.Create(ctx, 7, 1, ten.Add(time.Hour), ten.Add(2*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), store.available(1))

	// A different user may book the same window.
	_, _, err = eng.Create(ctx, 8, 1, ten, ten.Add(time.Hour))
	assert.NoError(t, err)
}

func TestCreateCapacityExhausted(t *testing.T) {
	store := newMemStore(testStation(1, 1))
	eng := newTestEngine(store)
	ctx := context.Background()

	start := testNow.Add(2 * time.Hour)
	_, _, err := eng.Create(ctx, 7, 1, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, uint32(0), store.available(1))

	_, _, err = eng.Create(ctx, 8, 1, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrCapacityExhausted)
	assert.Equal(t, uint32(0), store.available(1))
	assert.Equal(t, 1, store.activeCount(1))
}

func TestCreateCompensatesFailedInsert(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	store.createErr = func(*model.Booking) error { return ErrStoreUnavailable }
	eng := newTestEngine(store)

	start := testNow.Add(2 * time.Hour)
	_, _, err := eng.Create(context.Background(), 7, 1, start, start.Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	// The reserved slot was handed back.
	assert.Equal(t, uint32(4), store.available(1))
	assert.Equal(t, 1, store.releaseCalls)
}

func TestCreateConflictRetriesExhausted(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	store.createErr = func(*model.Booking) error { return ErrConflict }
	eng := newTestEngine(store)

	start := testNow.Add(2 * time.Hour)
	_, _, err := eng.Create(context.Background(), 7, 1, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrOverlappingBooking)
	// Every reserved slot was released again across the retries.
	assert.Equal(t, maxConflictRetries, store.reserveCalls)
	assert.Equal(t, maxConflictRetries, store.releaseCalls)
	assert.Equal(t, uint32(4), store.available(1))
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	start := testNow.Add(61 * time.Minute)
	b, _, err := eng.Create(ctx, 7, 1, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, uint32(3), store.available(1))

	res, err := eng.Cancel(ctx, b.ID, 7)
	require.NoError(t, err)
	assert.True(t, res.SlotReleased)
	assert.Equal(t, model.StatusCancelled, res.Booking.Status)
	assert.Equal(t, uint32(4), store.available(1))
	assert.Equal(t, 0, store.activeCount(1))
}

func TestCancelLeadTimeBoundary(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	// Starting in 59 minutes: too late to cancel.
	soon := testNow.Add(59 * time.Minute)
	b, _, err := eng.Create(ctx, 7, 1, soon, soon.Add(time.Hour))
	require.NoError(t, err)
	_, err = eng.Cancel(ctx, b.ID, 7)
	assert.ErrorIs(t, err, ErrCancellationWindowClosed)
	assert.Equal(t, uint32(3), store.available(1))

	// Starting in 61 minutes: cancellable.
	later := testNow.Add(61 * time.Minute)
	b2, _, err := eng.Create(ctx, 8, 1, later, later.Add(time.Hour))
	require.NoError(t, err)
	res, err := eng.Cancel(ctx, b2.ID, 8)
	require.NoError(t, err)
	assert.True(t, res.SlotReleased)
	assert.Equal(t, uint32(3), store.available(1))
}

func TestCancelIdempotent(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	start := testNow.Add(2 * time.Hour)
	b, _, err := eng.Create(ctx, 7, 1, start, start.Add(time.Hour))
	require.NoError(t, err)
	_, err = eng.Cancel(ctx, b.ID, 7)
	require.NoError(t, err)
	require.Equal(t, uint32(4), store.available(1))

	_, err = eng.Cancel(ctx, b.ID, 7)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	// The slot was not released a second time.
	assert.Equal(t, uint32(4), store.available(1))
}

func TestCancelOwnershipScoped(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	start := testNow.Add(2 * time.Hour)
	b, _, err := eng.Create(ctx, 7, 1, start, start.Add(time.Hour))
	require.NoError(t, err)

	_, err = eng.Cancel(ctx, b.ID, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = eng.Cancel(ctx, 12345, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelReportsFailedRelease(t *testing.T) {
	store := newMemStore(testStation(1, 4))
	eng := newTestEngine(store)
	ctx := context.Background()

	start := testNow.Add(2 * time.Hour)
	b, _, err := eng.Create(ctx, 7, 1, start, start.Add(time.Hour))
	require.NoError(t, err)

	store.releaseErr = ErrStoreUnavailable
	res, err := eng.Cancel(ctx, b.ID, 7)
	require.NoError(t, err)
	assert.False(t, res.SlotReleased)
	assert.Equal(t, model.StatusCancelled, res.Booking.Status)
}

func TestConcurrentCreatesRespectCapacity(t *testing.T) {
	const capacity = 5
	const requests = 32

	store := newMemStore(testStation(1, capacity))
	eng := newTestEngine(store)
	start := testNow.Add(2 * time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct users so only capacity, not the overlap rule, limits them.
			_, _, errs[i] = eng.Create(context.Background(), uint64(100+i), 1, start, start.Add(time.Hour))
		}(i)
	}
	wg.Wait()

	succeeded, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrCapacityExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, requests-capacity, exhausted)
	assert.Equal(t, uint32(0), store.available(1))
	assert.Equal(t, capacity, store.activeCount(1))
}
