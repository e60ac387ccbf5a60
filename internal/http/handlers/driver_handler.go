// README: Driver-facing handlers: availability, schedule, suggestions,
// location pings.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/types"
)

// CalendarService is the availability surface the handlers call.
type CalendarService interface {
	UpdateAvailability(ctx context.Context, driverID types.ID, date time.Time, patch calendar.UpdatePatch) (*calendar.Entry, error)
	Schedule(ctx context.Context, driverID types.ID, from, to time.Time) ([]calendar.DaySchedule, error)
	SuggestImprovements(ctx context.Context, driverID types.ID, date time.Time) ([]string, error)
}

// LocationStore records driver position pings.
type LocationStore interface {
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error
	RemoveLocation(ctx context.Context, id types.ID) error
}

type DriverHandler struct {
	cal       CalendarService
	locations LocationStore
}

func NewDriverHandler(cal CalendarService, locations LocationStore) *DriverHandler {
	return &DriverHandler{cal: cal, locations: locations}
}

type breakReq struct {
	Start string `json:"start" binding:"required"` // HH:MM
	End   string `json:"end" binding:"required"`
}

type availabilityReq struct {
	Date   string  `json:"date" binding:"required"` // YYYY-MM-DD
	Start  *string `json:"start"`                   // HH:MM
	End    *string `json:"end"`
	Status *string `json:"status"`

	Breaks   []breakReq `json:"breaks"`
	MaxRides *int       `json:"max_rides"`

	PreferredZones []string `json:"preferred_zones"`
	AvoidZones     []string `json:"avoid_zones"`
	Notes          *string  `json:"notes"`
}

func (h *DriverHandler) UpdateAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	patch := calendar.UpdatePatch{
		MaxRides:       req.MaxRides,
		PreferredZones: req.PreferredZones,
		AvoidZones:     req.AvoidZones,
		Notes:          req.Notes,
	}
	if req.Start != nil {
		m, err := calendar.ParseMin(*req.Start)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.StartMin = &m
	}
	if req.End != nil {
		m, err := calendar.ParseMin(*req.End)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.EndMin = &m
	}
	if req.Status != nil {
		st := calendar.Status(*req.Status)
		patch.Status = &st
	}
	if req.Breaks != nil {
		patch.Breaks = make([]calendar.BreakSlot, 0, len(req.Breaks))
		for _, b := range req.Breaks {
			start, err := calendar.ParseMin(b.Start)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			end, err := calendar.ParseMin(b.End)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			patch.Breaks = append(patch.Breaks, calendar.BreakSlot{StartMin: start, EndMin: end})
		}
	}

	e, err := h.cal.UpdateAvailability(c.Request.Context(), types.ID(c.Param("id")), date, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEntryResponse(e))
}

func (h *DriverHandler) Schedule(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		badRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		badRequest(c, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		badRequest(c, "to precedes from")
		return
	}

	days, err := h.cal.Schedule(c.Request.Context(), types.ID(c.Param("id")), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dayScheduleResponse, len(days))
	for i, d := range days {
		out[i] = toDayScheduleResponse(d)
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

func (h *DriverHandler) Suggestions(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	suggestions, err := h.cal.SuggestImprovements(c.Request.Context(), types.ID(c.Param("id")), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type locationReq struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id := types.ID(c.Param("id"))
	if err := h.locations.UpdateLocation(c.Request.Context(), id, types.Point{Lat: req.Lat, Lng: req.Lng}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// Offline drops the driver from the nearby-search index.
func (h *DriverHandler) Offline(c *gin.Context) {
	if err := h.locations.RemoveLocation(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offline": true})
}

type entryResponse struct {
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`

	Breaks []breakReq `json:"breaks,omitempty"`

	MaxRides        int `json:"max_rides"`
	CurrentBookings int `json:"current_bookings"`

	PreferredZones []string `json:"preferred_zones,omitempty"`
	AvoidZones     []string `json:"avoid_zones,omitempty"`

	UtilizationPct         float64 `json:"utilization_pct"`
	EstimatedEarningsCents int64   `json:"estimated_earnings_cents"`

	Notes string `json:"notes,omitempty"`
}

func toEntryResponse(e *calendar.Entry) entryResponse {
	resp := entryResponse{
		Date:                   e.Date.Format("2006-01-02"),
		Start:                  calendar.FormatMin(e.StartMin),
		End:                    calendar.FormatMin(e.EndMin),
		Status:                 string(e.Status),
		MaxRides:               e.MaxRides,
		CurrentBookings:        e.CurrentBookings,
		PreferredZones:         e.PreferredZones,
		AvoidZones:             e.AvoidZones,
		UtilizationPct:         e.UtilizationPct,
		EstimatedEarningsCents: e.EstimatedEarnings.Amount,
		Notes:                  e.Notes,
	}
	for _, b := range e.Breaks {
		resp.Breaks = append(resp.Breaks, breakReq{
			Start: calendar.FormatMin(b.StartMin),
			End:   calendar.FormatMin(b.EndMin),
		})
	}
	return resp
}

type scheduledRideResponse struct {
	RideID  string `json:"ride_id"`
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`

	PickupAddress  string `json:"pickup_address"`
	DropoffAddress string `json:"dropoff_address"`
	Status         string `json:"status"`
}

type gapResponse struct {
	Type        string `json:"type"`
	Start       string `json:"start"`
	End         string `json:"end"`
	DurationMin int    `json:"duration_min"`

	AfterRideID  *types.ID `json:"after_ride_id,omitempty"`
	BeforeRideID *types.ID `json:"before_ride_id,omitempty"`
}

type dayScheduleResponse struct {
	Date        string                  `json:"date"`
	Entry       *entryResponse          `json:"entry,omitempty"`
	Rides       []scheduledRideResponse `json:"rides"`
	Gaps        []gapResponse           `json:"gaps"`
	Utilization float64                 `json:"utilization_pct"`
}

func toDayScheduleResponse(d calendar.DaySchedule) dayScheduleResponse {
	resp := dayScheduleResponse{
		Date:        d.Date.Format("2006-01-02"),
		Rides:       []scheduledRideResponse{},
		Gaps:        []gapResponse{},
		Utilization: d.Utilization,
	}
	if d.Entry != nil {
		e := toEntryResponse(d.Entry)
		resp.Entry = &e
	}
	for _, r := range d.Rides {
		resp.Rides = append(resp.Rides, scheduledRideResponse{
			RideID:         string(r.RideID),
			Pickup:         calendar.FormatMin(r.PickupMin),
			Dropoff:        calendar.FormatMin(r.DropoffMin),
			PickupAddress:  r.PickupAddr,
			DropoffAddress: r.DropoffAddr,
			Status:         r.Status,
		})
	}
	for _, g := range d.Gaps {
		resp.Gaps = append(resp.Gaps, gapResponse{
			Type:         string(g.Type),
			Start:        calendar.FormatMin(g.StartMin),
			End:          calendar.FormatMin(g.EndMin),
			DurationMin:  g.DurationMin,
			AfterRideID:  g.AfterRideID,
			BeforeRideID: g.BeforeRideID,
		})
	}
	return resp
}
