package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// StationRepo provides CRUD and search operations for charging
// stations.  The availability counter is never written here; all
// counter mutation goes through the atomic reserve/release operations
// on BookingRepo so a plain update can never break the capacity
// invariant.
type StationRepo struct {
	db *sql.DB
}

// NewStationRepo returns a new StationRepo bound to the given database.
func NewStationRepo(db *sql.DB) *StationRepo { return &StationRepo{db: db} }

const stationColumns = `id, name, address, lat, lng, total_slots, available_slots,
	charging_speed, connector_types, amenities, open_time, close_time,
	price_per_hour_cents, is_active, created_at, updated_at`

// degreesPerKm approximates how many degrees of latitude one kilometre
// spans (111 km per degree).  The same factor is applied to longitude,
// which widens the box towards the poles; the search is a coarse
// bounding box, not a great-circle distance.
const degreesPerKm = 1.0 / 111.0

// SearchFilter narrows List results.  When HasLocation is set, only
// stations inside the bounding box of RadiusKm around (Lat, Lng) are
// returned.
type SearchFilter struct {
	HasLocation bool
	Lat         float64
	Lng         float64
	RadiusKm    float64
}

func scanStation(row interface{ Scan(...any) error }) (*model.Station, error) {
	var st model.Station
	var connectors, amenities string
	err := row.Scan(
		&st.ID, &st.Name, &st.Address, &st.Lat, &st.Lng,
		&st.TotalSlots, &st.AvailableSlots,
		&st.ChargingSpeed, &connectors, &amenities,
		&st.OpenTime, &st.CloseTime,
		&st.PricePerHourCents, &st.IsActive,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.ConnectorTypes = splitList(connectors)
	st.Amenities = splitList(amenities)
	return &st, nil
}

// splitList decodes the comma-separated list columns into a slice,
// dropping empty entries.
func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	clean := make([]string, 0, len(items))
	for _, p := range items {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ",")
}

// GetByID returns an active station.  sql.ErrNoRows is returned when
// the station does not exist or is inactive.
func (r *StationRepo) GetByID(ctx context.Context, id uint64) (*model.Station, error) {
	q := `SELECT ` + stationColumns + ` FROM stations WHERE id = ? AND is_active = 1`
	return scanStation(r.db.QueryRowContext(ctx, q, id))
}

// List returns active stations, optionally narrowed to a bounding box
// around a coordinate.  Results are ordered by name for deterministic
// output.
func (r *StationRepo) List(ctx context.Context, f SearchFilter) ([]model.Station, error) {
	q := `SELECT ` + stationColumns + ` FROM stations WHERE is_active = 1`
	args := []any{}
	if f.HasLocation {
		delta := f.RadiusKm * degreesPerKm
		q += ` AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`
		args = append(args, f.Lat-delta, f.Lat+delta, f.Lng-delta, f.Lng+delta)
	}
	q += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stations := make([]model.Station, 0)
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

// Create inserts a new station with a full slot pool and populates the
// generated ID on the provided record.
func (r *StationRepo) Create(ctx context.Context, st *model.Station) error {
	const q = `INSERT INTO stations
		(name, address, lat, lng, total_slots, available_slots,
		 charging_speed, connector_types, amenities, open_time, close_time,
		 price_per_hour_cents, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		st.Name, st.Address, st.Lat, st.Lng,
		st.TotalSlots, st.TotalSlots,
		st.ChargingSpeed, joinList(st.ConnectorTypes), joinList(st.Amenities),
		st.OpenTime, st.CloseTime,
		st.PricePerHourCents, st.IsActive,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	st.AvailableSlots = st.TotalSlots
	return nil
}

// Update rewrites a station's descriptive fields.  Capacity and the
// availability counter are deliberately not updatable here: shrinking
// total_slots under active bookings would break the capacity invariant.
func (r *StationRepo) Update(ctx context.Context, st *model.Station) error {
	const q = `UPDATE stations SET
		name = ?, address = ?, lat = ?, lng = ?,
		charging_speed = ?, connector_types = ?, amenities = ?,
		open_time = ?, close_time = ?, price_per_hour_cents = ?, is_active = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		st.Name, st.Address, st.Lat, st.Lng,
		st.ChargingSpeed, joinList(st.ConnectorTypes), joinList(st.Amenities),
		st.OpenTime, st.CloseTime, st.PricePerHourCents, st.IsActive,
		st.ID,
	)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}
