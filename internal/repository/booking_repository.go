package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ev-charging-reservation/internal/booking"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// BookingRepo persists bookings and owns the atomic slot accounting on
// the stations table.  It implements booking.Store: the availability
// counter is only ever changed by the two conditional UPDATE statements
// below, evaluated as one indivisible step by MySQL, never by separate
// read-then-write calls.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

var _ booking.Store = (*BookingRepo)(nil)

// DB exposes the underlying handle for callers that need to open their
// own transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, user_id, station_id, start_time, end_time,
	duration_minutes, slot_number, status, total_amount_cents,
	payment_status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.StationID, &b.StartTime, &b.EndTime,
		&b.DurationMinutes, &b.SlotNumber, &b.Status, &b.TotalAmountCents,
		&b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetStation loads an active station for the engine.
func (r *BookingRepo) GetStation(ctx context.Context, id uint64) (*model.Station, error) {
	q := `SELECT ` + stationColumns + ` FROM stations WHERE id = ? AND is_active = 1`
	st, err := scanStation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, storeErr("get station", err)
	}
	return st, nil
}

// ReserveSlot takes one slot from the station's pool.  The decrement is
// a single conditional UPDATE that only applies while a slot is free,
// so concurrent reservations can never push the counter below zero or
// admit more bookings than total_slots.  The display slot number is
// read back inside the same transaction.
func (r *BookingRepo) ReserveSlot(ctx context.Context, stationID uint64) (uint32, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("reserve slot: begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE stations SET available_slots = available_slots - 1
		 WHERE id = ? AND available_slots > 0 AND is_active = 1`, stationID)
	if err != nil {
		return 0, storeErr("reserve slot", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("reserve slot", err)
	}
	if aff == 0 {
		// Either the station is gone or the pool is empty.
		var total uint32
		err := tx.QueryRowContext(ctx,
			`SELECT total_slots FROM stations WHERE id = ? AND is_active = 1`, stationID).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, booking.ErrNotFound
		}
		if err != nil {
			return 0, storeErr("reserve slot", err)
		}
		return 0, booking.ErrCapacityExhausted
	}

	var total, availAfter uint32
	if err := tx.QueryRowContext(ctx,
		`SELECT total_slots, available_slots FROM stations WHERE id = ?`, stationID).
		Scan(&total, &availAfter); err != nil {
		return 0, storeErr("reserve slot: read counter", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("reserve slot: commit", err)
	}
	committed = true
	return booking.SlotNumber(total, availAfter+1), nil
}

// ReleaseSlot returns one slot to the station's pool.  LEAST clamps the
// counter at total_slots so a double release is harmless.
func (r *BookingRepo) ReleaseSlot(ctx context.Context, stationID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stations SET available_slots = LEAST(available_slots + 1, total_slots)
		 WHERE id = ?`, stationID)
	if err != nil {
		return storeErr("release slot", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return storeErr("release slot", err)
	}
	if aff == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// ActiveReservations returns the user's PENDING and CONFIRMED bookings.
func (r *BookingRepo) ActiveReservations(ctx context.Context, userID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
	      WHERE user_id = ? AND status IN ('PENDING','CONFIRMED')`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, storeErr("active reservations", err)
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, storeErr("active reservations", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("active reservations", err)
	}
	return out, nil
}

// CreateBooking inserts a booking and populates its ID and timestamps.
// The user row is locked for the duration of the transaction, and the
// overlap condition is re-verified under that lock, so two processes
// inserting for the same user serialize here even without the engine's
// in-process lock.  A lost race surfaces as booking.ErrConflict.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("create booking: begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var lockedID uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = ? FOR UPDATE`, b.UserID).Scan(&lockedID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storeErr("create booking: lock user", err)
	}

	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE user_id = ? AND status IN ('PENDING','CONFIRMED')
		   AND start_time < ? AND end_time > ?`,
		b.UserID, b.EndTime, b.StartTime).Scan(&overlapping)
	if err != nil {
		return storeErr("create booking: overlap check", err)
	}
	if overlapping > 0 {
		return booking.ErrConflict
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
		 (user_id, station_id, start_time, end_time, duration_minutes,
		  slot_number, status, total_amount_cents, payment_status)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.StationID, b.StartTime, b.EndTime, b.DurationMinutes,
		b.SlotNumber, b.Status, b.TotalAmountCents, b.PaymentStatus)
	if err != nil {
		if isDuplicateKey(err) {
			return booking.ErrConflict
		}
		return storeErr("create booking: insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storeErr("create booking: insert id", err)
	}
	b.ID = uint64(id)

	// Query back the full row to populate timestamps and defaults.
	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	nb, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID))
	if err != nil {
		return storeErr("create booking: read back", err)
	}
	*b = *nb

	if err := tx.Commit(); err != nil {
		return storeErr("create booking: commit", err)
	}
	committed = true
	return nil
}

// GetBookingForUser loads a booking scoped to its owner.  Bookings of
// other users are reported as absent, not forbidden.
func (r *BookingRepo) GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? AND user_id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, bookingID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, storeErr("get booking", err)
	}
	return b, nil
}

// MarkCancelled flips a booking to CANCELLED only while it is still
// active.  The status filter makes a racing double cancel lose with
// booking.ErrConflict instead of releasing the slot twice.
func (r *BookingRepo) MarkCancelled(ctx context.Context, bookingID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED'
		 WHERE id = ? AND status IN ('PENDING','CONFIRMED')`, bookingID)
	if err != nil {
		return storeErr("mark cancelled", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return storeErr("mark cancelled", err)
	}
	if aff == 0 {
		var status string
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM bookings WHERE id = ?`, bookingID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return booking.ErrNotFound
		}
		if err != nil {
			return storeErr("mark cancelled", err)
		}
		return booking.ErrConflict
	}
	return nil
}

// BookingDetail is a booking joined with display fields of its station.
// It is returned by the listing and detail queries for presentation to
// drivers.
type BookingDetail struct {
	ID               uint64 `json:"id"`
	StationID        uint64 `json:"station_id"`
	StationName      string `json:"station_name"`
	StationAddress   string `json:"station_address"`
	ChargingSpeed    string `json:"charging_speed"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	DurationMinutes  uint32 `json:"duration_minutes"`
	SlotNumber       uint32 `json:"slot_number"`
	Status           string `json:"status"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	PaymentStatus    string `json:"payment_status"`
	CreatedAt        string `json:"created_at"`
}

const detailColumns = `b.id, b.station_id, s.name, s.address, s.charging_speed,
	b.start_time, b.end_time, b.duration_minutes, b.slot_number,
	b.status, b.total_amount_cents, b.payment_status, b.created_at`

func scanDetail(row interface{ Scan(...any) error }) (*BookingDetail, error) {
	var d BookingDetail
	var start, end, created time.Time
	err := row.Scan(
		&d.ID, &d.StationID, &d.StationName, &d.StationAddress, &d.ChargingSpeed,
		&start, &end, &d.DurationMinutes, &d.SlotNumber,
		&d.Status, &d.TotalAmountCents, &d.PaymentStatus, &created,
	)
	if err != nil {
		return nil, err
	}
	d.StartTime = start.UTC().Format(time.RFC3339)
	d.EndTime = end.UTC().Format(time.RFC3339)
	d.CreatedAt = created.UTC().Format(time.RFC3339)
	return &d, nil
}

// ListByUser returns one page of the user's bookings with station
// details, newest first, along with the total row count for the filter.
// status narrows the list when non-empty.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, status string, page, limit int) ([]BookingDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	countQ := `SELECT COUNT(*) FROM bookings WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		countQ += ` AND status = ?`
		args = append(args, status)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("list bookings: count", err)
	}

	q := `SELECT ` + detailColumns + `
	      FROM bookings b
	      JOIN stations s ON s.id = b.station_id
	      WHERE b.user_id = ?`
	args = []any{userID}
	if status != "" {
		q += ` AND b.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY b.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, storeErr("list bookings", err)
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, 0, storeErr("list bookings", err)
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list bookings", err)
	}
	return details, total, nil
}

// GetDetailForUser returns a single booking with station details,
// scoped to the owning user.
func (r *BookingRepo) GetDetailForUser(ctx context.Context, bookingID, userID uint64) (*BookingDetail, error) {
	q := `SELECT ` + detailColumns + `
	      FROM bookings b
	      JOIN stations s ON s.id = b.station_id
	      WHERE b.id = ? AND b.user_id = ?`
	d, err := scanDetail(r.db.QueryRowContext(ctx, q, bookingID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, storeErr("get booking detail", err)
	}
	return d, nil
}
