package model

import "time"

// Booking status values as stored in the bookings.status enum column.
// CANCELLED and COMPLETED are terminal.  COMPLETED exists in the enum
// but nothing transitions a booking into it yet; bookings stay
// CONFIRMED past their end time until a future reconciliation sweep is
// added.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Payment status values for bookings.payment_status.  Payments are not
// processed by this service, so bookings remain PAYMENT_PENDING.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// IsTerminalStatus reports whether a booking in the given status can no
// longer change state.
func IsTerminalStatus(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}

// IsActiveStatus reports whether a booking in the given status consumes
// a slot and counts for the per-user overlap check.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// IsValidStatus reports whether status is one of the Status* constants.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Booking records a user's reservation of one slot at a station for a
// time window.  StartTime/EndTime form a half-open interval
// [StartTime, EndTime); a booking ending exactly when another begins
// does not overlap it.  SlotNumber is a display label only; slot
// numbers are not unique across a station's lifetime.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking (immutable).
//  StationID        – station being booked (immutable).
//  StartTime        – start of the reserved window, UTC.
//  EndTime          – end of the reserved window, UTC; always after StartTime.
//  DurationMinutes  – EndTime minus StartTime in whole minutes.
//  SlotNumber       – display slot label assigned at creation.
//  Status           – one of the Status* constants.
//  TotalAmountCents – price computed at creation; immutable afterwards.
//  PaymentStatus    – one of the Payment* constants.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64    // bookings.id
	UserID           uint64    // bookings.user_id
	StationID        uint64    // bookings.station_id
	StartTime        time.Time // bookings.start_time
	EndTime          time.Time // bookings.end_time
	DurationMinutes  uint32    // bookings.duration_minutes
	SlotNumber       uint32    // bookings.slot_number
	Status           string    // bookings.status
	TotalAmountCents uint64    // bookings.total_amount_cents
	PaymentStatus    string    // bookings.payment_status
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
}
