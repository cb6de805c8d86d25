// Package repository implements MySQL persistence for users, stations
// and bookings.  The booking engine's Store contract is satisfied by
// BookingRepo; sentinel errors from the booking package are used for
// absent records and lost races so handlers and the engine can branch
// with errors.Is.
package repository

import (
	"fmt"
	"strings"

	"github.com/iliyamo/ev-charging-reservation/internal/booking"
)

// storeErr wraps a driver-level failure so callers can detect the
// transient-store class with errors.Is while keeping the original
// message for logs.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, booking.ErrStoreUnavailable, err)
}

// isDuplicateKey sniffs MySQL error 1062 (duplicate entry).  The driver
// does not expose a typed error for it.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
