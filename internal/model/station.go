package model

import "time"

// Charging speed categories supported by stations.  The values are
// stored verbatim in the stations.charging_speed enum column.
const (
	SpeedSlow   = "SLOW"
	SpeedMedium = "MEDIUM"
	SpeedFast   = "FAST"
	SpeedUltra  = "ULTRA"
)

// Station describes a physical charging station and its slot pool.
// TotalSlots is the fixed capacity; AvailableSlots is the mutable
// availability counter and is only ever changed through the atomic
// reserve/release operations in the repository, never by plain
// read-modify-write.  A slot is one unit of concurrent usage.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – display name of the station.
//  Address           – street address shown to drivers.
//  Lat, Lng          – WGS84 coordinates used by the bounding-box search.
//  TotalSlots        – fixed number of chargers at the station (>= 1).
//  AvailableSlots    – slots currently free, 0 <= AvailableSlots <= TotalSlots.
//  ChargingSpeed     – one of the Speed* constants.
//  ConnectorTypes    – connector standards offered (e.g. "Type 2", "CCS").
//  Amenities         – free-form amenity labels (e.g. "cafe", "wifi").
//  OpenTime          – daily opening time as "HH:MM".
//  CloseTime         – daily closing time as "HH:MM".
//  PricePerHourCents – hourly price in cents.
//  IsActive          – inactive stations are hidden from search and booking.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Station struct {
	ID                uint64    // stations.id
	Name              string    // stations.name
	Address           string    // stations.address
	Lat               float64   // stations.lat
	Lng               float64   // stations.lng
	TotalSlots        uint32    // stations.total_slots
	AvailableSlots    uint32    // stations.available_slots
	ChargingSpeed     string    // stations.charging_speed
	ConnectorTypes    []string  // stations.connector_types (comma separated)
	Amenities         []string  // stations.amenities (comma separated)
	OpenTime          string    // stations.open_time
	CloseTime         string    // stations.close_time
	PricePerHourCents uint64    // stations.price_per_hour_cents
	IsActive          bool      // stations.is_active
	CreatedAt         time.Time // stations.created_at
	UpdatedAt         time.Time // stations.updated_at
}

// OccupiedSlots derives the number of slots currently consumed from the
// availability counter.
func (s *Station) OccupiedSlots() uint32 {
	if s.AvailableSlots > s.TotalSlots {
		return 0
	}
	return s.TotalSlots - s.AvailableSlots
}
