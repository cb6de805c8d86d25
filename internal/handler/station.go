package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// StationHandler exposes station discovery to drivers and station
// management to operators.  Public endpoints return sanitized data and
// apply no authentication; the create and update endpoints are wired
// behind JWT and OPERATOR role middleware by the router.
type StationHandler struct {
	Stations *repository.StationRepo
}

// NewStationHandler constructs a StationHandler and panics if the
// repository is nil.
func NewStationHandler(stations *repository.StationRepo) *StationHandler {
	if stations == nil {
		panic("nil repository passed to NewStationHandler")
	}
	return &StationHandler{Stations: stations}
}

type stationResp struct {
	ID                uint64   `json:"id"`
	Name              string   `json:"name"`
	Address           string   `json:"address"`
	Lat               float64  `json:"lat"`
	Lng               float64  `json:"lng"`
	TotalSlots        uint32   `json:"total_slots"`
	AvailableSlots    uint32   `json:"available_slots"`
	ChargingSpeed     string   `json:"charging_speed"`
	ConnectorTypes    []string `json:"connector_types"`
	Amenities         []string `json:"amenities"`
	OpenTime          string   `json:"open_time"`
	CloseTime         string   `json:"close_time"`
	PricePerHourCents uint64   `json:"price_per_hour_cents"`
}

func toStationResp(st *model.Station) stationResp {
	return stationResp{
		ID:                st.ID,
		Name:              st.Name,
		Address:           st.Address,
		Lat:               st.Lat,
		Lng:               st.Lng,
		TotalSlots:        st.TotalSlots,
		AvailableSlots:    st.AvailableSlots,
		ChargingSpeed:     st.ChargingSpeed,
		ConnectorTypes:    st.ConnectorTypes,
		Amenities:         st.Amenities,
		OpenTime:          st.OpenTime,
		CloseTime:         st.CloseTime,
		PricePerHourCents: st.PricePerHourCents,
	}
}

// List handles GET /v1/stations.  Without parameters it returns all
// active stations.  With lat, lng and radius_km it narrows the result
// to a bounding box around the coordinate; the three parameters must be
// provided together.
func (h *StationHandler) List(c echo.Context) error {
	latStr := strings.TrimSpace(c.QueryParam("lat"))
	lngStr := strings.TrimSpace(c.QueryParam("lng"))
	radStr := strings.TrimSpace(c.QueryParam("radius_km"))

	var f repository.SearchFilter
	if latStr != "" || lngStr != "" || radStr != "" {
		if latStr == "" || lngStr == "" || radStr == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat, lng and radius_km must be provided together"})
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil || lat < -90 || lat > 90 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lat"})
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil || lng < -180 || lng > 180 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lng"})
		}
		rad, err := strconv.ParseFloat(radStr, 64)
		if err != nil || rad <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid radius_km"})
		}
		f = repository.SearchFilter{HasLocation: true, Lat: lat, Lng: lng, RadiusKm: rad}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stations, err := h.Stations.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stations"})
	}
	items := make([]stationResp, 0, len(stations))
	for i := range stations {
		items = append(items, toStationResp(&stations[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/stations/:id.  Inactive stations respond with 404.
func (h *StationHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "station not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch station"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toStationResp(st)})
}

type stationReq struct {
	Name              string   `json:"name"`
	Address           string   `json:"address"`
	Lat               float64  `json:"lat"`
	Lng               float64  `json:"lng"`
	TotalSlots        uint32   `json:"total_slots"`
	ChargingSpeed     string   `json:"charging_speed"`
	ConnectorTypes    []string `json:"connector_types"`
	Amenities         []string `json:"amenities"`
	OpenTime          string   `json:"open_time"`
	CloseTime         string   `json:"close_time"`
	PricePerHourCents uint64   `json:"price_per_hour_cents"`
	IsActive          *bool    `json:"is_active"`
}

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func (req *stationReq) validate(requireSlots bool) string {
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	req.ChargingSpeed = strings.ToUpper(strings.TrimSpace(req.ChargingSpeed))
	if req.Name == "" {
		return "name is required"
	}
	if req.Address == "" {
		return "address is required"
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return "invalid coordinates"
	}
	if requireSlots && req.TotalSlots == 0 {
		return "total_slots must be at least 1"
	}
	switch req.ChargingSpeed {
	case model.SpeedSlow, model.SpeedMedium, model.SpeedFast, model.SpeedUltra:
	default:
		return "charging_speed must be one of SLOW, MEDIUM, FAST, ULTRA"
	}
	if req.OpenTime != "" && !hhmmRe.MatchString(req.OpenTime) {
		return "open_time must be HH:MM"
	}
	if req.CloseTime != "" && !hhmmRe.MatchString(req.CloseTime) {
		return "close_time must be HH:MM"
	}
	return ""
}

// Create handles POST /v1/stations (OPERATOR only).  The station starts
// with a full slot pool: available_slots equals total_slots.
func (h *StationHandler) Create(c echo.Context) error {
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(true); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	st := &model.Station{
		Name:              req.Name,
		Address:           req.Address,
		Lat:               req.Lat,
		Lng:               req.Lng,
		TotalSlots:        req.TotalSlots,
		ChargingSpeed:     req.ChargingSpeed,
		ConnectorTypes:    req.ConnectorTypes,
		Amenities:         req.Amenities,
		OpenTime:          req.OpenTime,
		CloseTime:         req.CloseTime,
		PricePerHourCents: req.PricePerHourCents,
		IsActive:          active,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Stations.Create(ctx, st); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create station"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toStationResp(st)})
}

// Update handles PUT /v1/stations/:id (OPERATOR only).  Descriptive
// fields are rewritten; total_slots and available_slots are never
// changed here because shrinking capacity under active bookings would
// break slot accounting.
func (h *StationHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(false); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	st := &model.Station{
		ID:                id,
		Name:              req.Name,
		Address:           req.Address,
		Lat:               req.Lat,
		Lng:               req.Lng,
		ChargingSpeed:     req.ChargingSpeed,
		ConnectorTypes:    req.ConnectorTypes,
		Amenities:         req.Amenities,
		OpenTime:          req.OpenTime,
		CloseTime:         req.CloseTime,
		PricePerHourCents: req.PricePerHourCents,
		IsActive:          active,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Stations.Update(ctx, st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "station not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update station"})
	}

	// Reload so the response carries the untouched capacity fields.
	updated, err := h.Stations.GetByID(ctx, id)
	if err != nil {
		// The update succeeded; an inactive station simply has no public view.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toStationResp(updated)})
}
