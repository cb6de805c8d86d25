package booking

import "time"

// CancelLeadTime is the minimum gap between the moment of a cancel
// request and the booking's start time.  Bookings closer to their start
// than this cannot be cancelled.
const CancelLeadTime = time.Hour

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant.  Touching boundaries, one booking
// ending exactly when another begins, do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// TotalAmountCents prices a booking window at the given hourly rate.
// The window length in milliseconds is multiplied by the rate and
// divided by the milliseconds in an hour, all in integer arithmetic, so
// fractional hours price exactly without floating-point drift.
func TotalAmountCents(start, end time.Time, pricePerHourCents uint64) uint64 {
	ms := end.Sub(start).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return uint64(ms) * pricePerHourCents / uint64(time.Hour/time.Millisecond)
}

// DurationMinutes returns the booking window length in whole minutes.
func DurationMinutes(start, end time.Time) uint32 {
	if !end.After(start) {
		return 0
	}
	return uint32(end.Sub(start) / time.Minute)
}

// SlotNumber derives the display slot label from the availability
// counter before the reservation was taken.  This repeats the simple
// counting scheme of filling slots from the low numbers up; it is not a
// free list, so labels may repeat across a station's lifetime.
func SlotNumber(totalSlots, availableBefore uint32) uint32 {
	if availableBefore == 0 || availableBefore > totalSlots {
		return 0
	}
	return totalSlots - availableBefore + 1
}

// CancellableAt reports whether a booking starting at start may still
// be cancelled at instant now.  The comparison is done on the
// millisecond difference so a booking starting in exactly 59 minutes is
// rejected and one starting in 61 minutes is allowed.
func CancellableAt(now, start time.Time) bool {
	return start.Sub(now).Milliseconds() >= CancelLeadTime.Milliseconds()
}
