// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used for booking lifecycle events.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published when a booking is successfully
// confirmed.  It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	UserID           uint64 `json:"user_id"`
	StationID        uint64 `json:"station_id"`
	StationName      string `json:"station_name"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	SlotNumber       uint32 `json:"slot_number"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a driver cancels a booking.
// SlotReleased reports whether the station's availability was restored;
// a false value means the release failed and the slot will stay occupied
// until reconciled.
type BookingCancelledEvent struct {
	BookingID    uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	StationID    uint64 `json:"station_id"`
	SlotNumber   uint32 `json:"slot_number"`
	SlotReleased bool   `json:"slot_released"`
	CancelledAt  string `json:"cancelled_at"`
}
