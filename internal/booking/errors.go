// Package booking implements the reservation and availability engine:
// validation of booking requests, per-user overlap detection, atomic
// slot accounting against a finite per-station pool, and the booking
// lifecycle (create, cancel).  Storage is abstracted behind the Store
// interface so the engine can be exercised without a database.
package booking

import "errors"

// Sentinel errors returned by the engine and by Store implementations.
// Business-rule failures (ErrInvalidWindow, ErrOverlappingBooking,
// ErrCapacityExhausted, ErrAlreadyTerminal, ErrCancellationWindowClosed)
// are terminal for a request and must be surfaced to the caller
// unchanged.  ErrConflict signals a lost race inside the store and is
// retried internally by the engine a bounded number of times.
// ErrStoreUnavailable wraps transient storage failures; the engine
// never silently retries it because a blind retry could double-create
// a booking.
var (
	// ErrInvalidWindow is returned when end_time is not after start_time.
	ErrInvalidWindow = errors.New("end time must be after start time")

	// ErrStationNotFound is returned when the requested station does not
	// exist or is inactive.
	ErrStationNotFound = errors.New("charging station not found")

	// ErrOverlappingBooking is returned when the user already holds an
	// active booking whose window overlaps the requested one.
	ErrOverlappingBooking = errors.New("user already has a booking overlapping this window")

	// ErrCapacityExhausted is returned when the station has no free slot
	// for the requested window.  Nothing is mutated.
	ErrCapacityExhausted = errors.New("no available slots at this station")

	// ErrNotFound is returned when a booking does not exist or belongs to
	// a different user.  Ownership failures are deliberately
	// indistinguishable from absence.
	ErrNotFound = errors.New("booking not found")

	// ErrAlreadyTerminal is returned when cancelling a booking that is
	// already CANCELLED or COMPLETED.
	ErrAlreadyTerminal = errors.New("booking is already cancelled or completed")

	// ErrCancellationWindowClosed is returned when a booking starts less
	// than the cancellation lead time from now.
	ErrCancellationWindowClosed = errors.New("bookings cannot be cancelled less than 1 hour before start")

	// ErrConflict is returned by Store implementations when a concurrent
	// writer invalidated a check-then-commit sequence.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrStoreUnavailable wraps transient storage failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
