package booking

import (
	"context"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// Store is the persistence boundary of the engine.  Implementations
// must provide the atomicity guarantees documented per method; the
// engine adds per-user serialization on top but relies on the store for
// per-station slot accounting.
//
// Error contract: absent records map to ErrNotFound, lost races to
// ErrConflict, and transient storage failures to errors wrapping
// ErrStoreUnavailable.
type Store interface {
	// GetStation loads an active station by id.
	GetStation(ctx context.Context, id uint64) (*model.Station, error)

	// ReserveSlot decrements the station's available-slot counter only if
	// it is positive, as one indivisible step, and returns the display
	// slot number derived from the pre-decrement counter.  It returns
	// ErrCapacityExhausted, without mutating anything, when no slot is
	// free, and ErrNotFound when the station does not exist.
	ReserveSlot(ctx context.Context, stationID uint64) (uint32, error)

	// ReleaseSlot increments the station's available-slot counter,
	// clamped at the station's total capacity so a double release can
	// never push the counter out of range.
	ReleaseSlot(ctx context.Context, stationID uint64) error

	// ActiveReservations returns the user's bookings in PENDING or
	// CONFIRMED status.
	ActiveReservations(ctx context.Context, userID uint64) ([]model.Booking, error)

	// CreateBooking persists a new booking and populates its ID and
	// timestamps.  Implementations must re-verify inside their commit
	// scope that the booking does not overlap another active booking of
	// the same user, returning ErrConflict when a concurrent insert won
	// the race.
	CreateBooking(ctx context.Context, b *model.Booking) error

	// GetBookingForUser loads a booking scoped to its owner.  A booking
	// owned by someone else yields ErrNotFound.
	GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)

	// MarkCancelled transitions a booking to CANCELLED only while it is
	// still in an active status.  It returns ErrConflict when the booking
	// was already terminal, so a racing double cancel is detected rather
	// than applied twice.
	MarkCancelled(ctx context.Context, bookingID uint64) error
}
