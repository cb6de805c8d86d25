package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ev-charging-reservation/internal/booking"
	"github.com/iliyamo/ev-charging-reservation/internal/metrics"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/queue"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/ev-charging-reservation/internal/service"
)

// BookingHandler exposes the booking lifecycle endpoints for drivers.
// The engine owns the reservation semantics; the handler translates
// business errors into HTTP responses, records metrics and publishes
// lifecycle events.  All methods assume JWT authentication and role
// validation has already been performed by middleware.
type BookingHandler struct {
	Engine   *booking.Engine
	Bookings *repository.BookingRepo
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// PublishEvents enables best-effort RabbitMQ notifications.  A publish
	// failure never fails the request.
	PublishEvents bool
}

// NewBookingHandler constructs a BookingHandler.  Engine and repository
// must be non-nil; metrics may be nil to disable instrumentation.
func NewBookingHandler(engine *booking.Engine, bookings *repository.BookingRepo, m *metrics.Metrics, logger zerolog.Logger, publishEvents bool) *BookingHandler {
	if engine == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Engine:        engine,
		Bookings:      bookings,
		Metrics:       m,
		Logger:        logger,
		PublishEvents: publishEvents,
	}
}

type createBookingReq struct {
	StationID uint64 `json:"station_id"`
	StartTime string `json:"start_time"` // RFC3339
	EndTime   string `json:"end_time"`   // RFC3339
}

type bookingResp struct {
	ID               uint64 `json:"id"`
	StationID        uint64 `json:"station_id"`
	StationName      string `json:"station_name,omitempty"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	DurationMinutes  uint32 `json:"duration_minutes"`
	SlotNumber       uint32 `json:"slot_number"`
	Status           string `json:"status"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	PaymentStatus    string `json:"payment_status"`
}

func toBookingResp(b *model.Booking, stationName string) bookingResp {
	return bookingResp{
		ID:               b.ID,
		StationID:        b.StationID,
		StationName:      stationName,
		StartTime:        b.StartTime.UTC().Format(time.RFC3339),
		EndTime:          b.EndTime.UTC().Format(time.RFC3339),
		DurationMinutes:  b.DurationMinutes,
		SlotNumber:       b.SlotNumber,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		PaymentStatus:    b.PaymentStatus,
	}
}

// Create handles POST /v1/bookings.  It books a charging slot at a
// station for the given time window.  The window must be valid RFC3339
// with end after start; overlap and capacity rules are enforced by the
// engine.  Returns 201 Created with the confirmed booking.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.StationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "station_id is required"})
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC3339"})
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be RFC3339"})
	}

	b, st, err := h.Engine.Create(c.Request().Context(), userID, req.StationID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrInvalidWindow):
			h.Metrics.IncRejected(metrics.ReasonInvalidWindow)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after start_time"})
		case errors.Is(err, booking.ErrStationNotFound):
			h.Metrics.IncRejected(metrics.ReasonNotFound)
			return c.JSON(http.StatusNotFound, echo.Map{"error": "station not found"})
		case errors.Is(err, booking.ErrOverlappingBooking):
			h.Metrics.IncRejected(metrics.ReasonOverlap)
			return c.JSON(http.StatusConflict, echo.Map{"error": "overlapping booking exists"})
		case errors.Is(err, booking.ErrCapacityExhausted):
			h.Metrics.IncRejected(metrics.ReasonNoCapacity)
			return c.JSON(http.StatusConflict, echo.Map{"error": "no slots available for this station"})
		}
		h.Logger.Error().Err(err).Uint64("user_id", userID).Msg("booking create failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}

	h.Metrics.IncCreated()
	h.publishConfirmed(b, st)

	return c.JSON(http.StatusCreated, toBookingResp(b, st.Name))
}

// List handles GET /v1/bookings.  It returns the current user's bookings
// with station details, newest first.  Optional query parameters: status
// (PENDING|CONFIRMED|COMPLETED|CANCELLED), page and limit.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !model.IsValidStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	items, total, err := h.Bookings.ListByUser(c.Request().Context(), userID, status, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Get handles GET /v1/bookings/:id.  It returns a single booking with
// station details.  Bookings of other users respond with 404.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	detail, err := h.Bookings.GetDetailForUser(c.Request().Context(), bookingID, userID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// Cancel handles PUT /v1/bookings/:id/cancel.  A booking can only be
// cancelled by its owner, while still active, and at least one hour
// before its start time.  The response reports whether the station's
// availability was restored.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	res, err := h.Engine.Cancel(c.Request().Context(), bookingID, userID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, booking.ErrAlreadyTerminal):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already completed or cancelled"})
		case errors.Is(err, booking.ErrCancellationWindowClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "bookings can only be cancelled at least 1 hour before start time"})
		}
		h.Logger.Error().Err(err).Uint64("booking_id", bookingID).Msg("booking cancel failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}

	h.Metrics.IncCancelled()
	if !res.SlotReleased {
		h.Metrics.IncReleaseFailure()
	}
	h.publishCancelled(res)

	resp := toBookingResp(res.Booking, "")
	return c.JSON(http.StatusOK, echo.Map{
		"item":          resp,
		"slot_released": res.SlotReleased,
	})
}

// publishConfirmed emits a booking.confirmed event in the background.
func (h *BookingHandler) publishConfirmed(b *model.Booking, st *model.Station) {
	if !h.PublishEvents {
		return
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:        b.ID,
		UserID:           b.UserID,
		StationID:        b.StationID,
		StationName:      st.Name,
		StartTime:        b.StartTime.UTC().Format(time.RFC3339),
		EndTime:          b.EndTime.UTC().Format(time.RFC3339),
		SlotNumber:       b.SlotNumber,
		TotalAmountCents: b.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishBookingConfirmed(ctx, ev)
	}()
}

// publishCancelled emits a booking.cancelled event in the background.
func (h *BookingHandler) publishCancelled(res *booking.CancelResult) {
	if !h.PublishEvents {
		return
	}
	b := res.Booking
	ev := queue.BookingCancelledEvent{
		BookingID:    b.ID,
		UserID:       b.UserID,
		StationID:    b.StationID,
		SlotNumber:   b.SlotNumber,
		SlotReleased: res.SlotReleased,
		CancelledAt:  time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishBookingCancelled(ctx, ev)
	}()
}
