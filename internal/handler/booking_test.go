package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ev-charging-reservation/internal/booking"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// fakeStore is an in-memory booking.Store for handler tests.  Handler
// tests only exercise single-request flows, so no locking is needed.
type fakeStore struct {
	stations map[uint64]*model.Station
	bookings map[uint64]*model.Booking
	nextID   uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stations: make(map[uint64]*model.Station),
		bookings: make(map[uint64]*model.Booking),
		nextID:   1,
	}
}

func (s *fakeStore) GetStation(_ context.Context, id uint64) (*model.Station, error) {
	st, ok := s.stations[id]
	if !ok || !st.IsActive {
		return nil, booking.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *fakeStore) ReserveSlot(_ context.Context, stationID uint64) (uint32, error) {
	st, ok := s.stations[stationID]
	if !ok {
		return 0, booking.ErrNotFound
	}
	if st.AvailableSlots == 0 {
		return 0, booking.ErrCapacityExhausted
	}
	st.AvailableSlots--
	return booking.SlotNumber(st.TotalSlots, st.AvailableSlots+1), nil
}

func (s *fakeStore) ReleaseSlot(_ context.Context, stationID uint64) error {
	st, ok := s.stations[stationID]
	if !ok {
		return booking.ErrNotFound
	}
	if st.AvailableSlots < st.TotalSlots {
		st.AvailableSlots++
	}
	return nil
}

func (s *fakeStore) ActiveReservations(_ context.Context, userID uint64) ([]model.Booking, error) {
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID && model.IsActiveStatus(b.Status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateBooking(_ context.Context, b *model.Booking) error {
	b.ID = s.nextID
	s.nextID++
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) GetBookingForUser(_ context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, ok := s.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, booking.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) MarkCancelled(_ context.Context, bookingID uint64) error {
	b, ok := s.bookings[bookingID]
	if !ok {
		return booking.ErrNotFound
	}
	if model.IsTerminalStatus(b.Status) {
		return booking.ErrConflict
	}
	b.Status = model.StatusCancelled
	return nil
}

var handlerTestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(store *fakeStore) *BookingHandler {
	engine := booking.NewEngine(store, zerolog.Nop()).
		WithClock(func() time.Time { return handlerTestNow })
	return NewBookingHandler(engine, repository.NewBookingRepo(nil), nil, zerolog.Nop(), false)
}

func newBookingContext(t *testing.T, method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	// JWT numeric claims decode as float64; mimic that here.
	c.Set("user_id", float64(userID))
	return c, rec
}

func seedStation(store *fakeStore, id uint64, slots uint32) {
	store.stations[id] = &model.Station{
		ID:                id,
		Name:              "Riverside Chargers",
		TotalSlots:        slots,
		AvailableSlots:    slots,
		ChargingSpeed:     model.SpeedFast,
		PricePerHourCents: 600,
		IsActive:          true,
	}
}

func TestCreateBookingCreated(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 3)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:30:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)

	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.StationID)
	assert.Equal(t, "Riverside Chargers", resp.StationName)
	assert.Equal(t, model.StatusConfirmed, resp.Status)
	assert.Equal(t, uint32(90), resp.DurationMinutes)
	assert.Equal(t, uint64(900), resp.TotalAmountCents) // 1.5h at 600/h
	assert.Equal(t, uint32(1), resp.SlotNumber)
	assert.Equal(t, uint32(2), store.stations[1].AvailableSlots)
}

func TestCreateBookingBadTimestamp(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 3)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"tomorrow","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingInvalidWindow(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 3)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T15:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingStationMissing(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	body := `{"station_id":99,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingOverlapConflict(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 3)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T16:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body = `{"station_id":1,"start_time":"2025-06-01T15:00:00Z","end_time":"2025-06-01T17:00:00Z"}`
	c, rec = newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "overlapping")
}

func TestCreateBookingNoCapacity(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 1)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newBookingContext(t, http.MethodPost, "/v1/bookings", body, 8)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no slots available")
}

func TestCancelBookingOK(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 2)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newBookingContext(t, http.MethodPut, "/v1/bookings/1/cancel", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Cancel(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Item         bookingResp `json:"item"`
		SlotReleased bool        `json:"slot_released"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.SlotReleased)
	assert.Equal(t, model.StatusCancelled, resp.Item.Status)
	assert.Equal(t, uint32(2), store.stations[1].AvailableSlots)
}

func TestCancelBookingLeadTimeTooShort(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 2)
	h := newTestHandler(store)

	// Starts 30 minutes from the fixed test clock.
	body := `{"station_id":1,"start_time":"2025-06-01T12:30:00Z","end_time":"2025-06-01T13:30:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newBookingContext(t, http.MethodPut, "/v1/bookings/1/cancel", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 hour")
}

func TestCancelBookingNotOwned(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 2)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newBookingContext(t, http.MethodPut, "/v1/bookings/1/cancel", "", 8)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBookingTwice(t *testing.T) {
	store := newFakeStore()
	seedStation(store, 1, 2)
	h := newTestHandler(store)

	body := `{"station_id":1,"start_time":"2025-06-01T14:00:00Z","end_time":"2025-06-01T15:00:00Z"}`
	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings", body, 7)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		c, rec = newBookingContext(t, http.MethodPut, "/v1/bookings/1/cancel", "", 7)
		c.SetParamNames("id")
		c.SetParamValues("1")
		require.NoError(t, h.Cancel(c))
		assert.Equalf(t, want, rec.Code, "cancel attempt %d", i+1)
	}
}

func TestStationListRequiresFullLocation(t *testing.T) {
	h := NewStationHandler(repository.NewStationRepo(nil))

	req := httptest.NewRequest(http.MethodGet, "/v1/stations?lat=52.5", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "provided together")
}

func TestStationCreateValidation(t *testing.T) {
	h := NewStationHandler(repository.NewStationRepo(nil))

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"address":"1 Main St","total_slots":4,"charging_speed":"FAST"}`, "name is required"},
		{"zero slots", `{"name":"A","address":"1 Main St","total_slots":0,"charging_speed":"FAST"}`, "total_slots"},
		{"bad speed", `{"name":"A","address":"1 Main St","total_slots":4,"charging_speed":"WARP"}`, "charging_speed"},
		{"bad open time", `{"name":"A","address":"1 Main St","total_slots":4,"charging_speed":"FAST","open_time":"25:00"}`, "open_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/stations", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)

			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}
