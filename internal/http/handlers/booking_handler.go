// README: Booking handlers: create, get, cancel, modify, recurring expansion.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideconnect/internal/modules/booking"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/types"
)

// BookingService is the booking surface the handlers call.
type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) (*ride.Request, error)
	Get(ctx context.Context, rideID types.ID) (*ride.Request, error)
	Cancel(ctx context.Context, rideID types.ID, cancelledBy, reason string) (*ride.Request, error)
	Modify(ctx context.Context, rideID types.ID, req booking.ModifyRequest) (*ride.Request, error)
	GenerateFromTemplate(ctx context.Context, templateID types.ID, until time.Time) ([]*ride.Request, error)
}

type BookingHandler struct {
	svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

type createBookingReq struct {
	RiderID        string    `json:"rider_id" binding:"required"`
	PickupAddress  string    `json:"pickup_address" binding:"required"`
	DropoffAddress string    `json:"dropoff_address" binding:"required"`
	PickupAt       time.Time `json:"pickup_at" binding:"required"`

	BookingType string `json:"booking_type"`
	Priority    string `json:"priority"`
	Purpose     string `json:"purpose"`

	WheelchairRequired  bool     `json:"wheelchair_required"`
	AssistanceRequired  []string `json:"assistance_required"`
	SpecialRequirements string   `json:"special_requirements"`
	PickupWindowMin     int      `json:"pickup_window_min"`

	ReturnPickupAt     *time.Time `json:"return_pickup_at"`
	FlexibleReturn     bool       `json:"flexible_return"`
	WaitingDurationMin int        `json:"waiting_duration_min"`

	PaymentRef string `json:"payment_ref"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := h.svc.Create(c.Request.Context(), booking.CreateRequest{
		RiderID:             types.ID(req.RiderID),
		PickupAddress:       req.PickupAddress,
		DropoffAddress:      req.DropoffAddress,
		PickupAt:            req.PickupAt,
		BookingType:         pricing.BookingTypeOf(req.BookingType),
		Priority:            pricing.PriorityOf(req.Priority),
		Purpose:             req.Purpose,
		WheelchairRequired:  req.WheelchairRequired,
		AssistanceRequired:  req.AssistanceRequired,
		SpecialRequirements: req.SpecialRequirements,
		PickupWindowMin:     req.PickupWindowMin,
		ReturnPickupAt:      req.ReturnPickupAt,
		FlexibleReturn:      req.FlexibleReturn,
		WaitingDurationMin:  req.WaitingDurationMin,
		RiderPaymentRef:     req.PaymentRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRideResponse(r))
}

func (h *BookingHandler) Get(c *gin.Context) {
	r, err := h.svc.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type cancelBookingReq struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.CancelledBy == "" {
		req.CancelledBy = "rider"
	}
	r, err := h.svc.Cancel(c.Request.Context(), types.ID(c.Param("id")), req.CancelledBy, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type modifyBookingReq struct {
	PickupAt            *time.Time `json:"pickup_at"`
	PickupAddress       *string    `json:"pickup_address"`
	DropoffAddress      *string    `json:"dropoff_address"`
	SpecialRequirements *string    `json:"special_requirements"`
}

func (h *BookingHandler) Modify(c *gin.Context) {
	var req modifyBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := h.svc.Modify(c.Request.Context(), types.ID(c.Param("id")), booking.ModifyRequest{
		PickupAt:            req.PickupAt,
		PickupAddress:       req.PickupAddress,
		DropoffAddress:      req.DropoffAddress,
		SpecialRequirements: req.SpecialRequirements,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type generateBookingsReq struct {
	Until string `json:"until" binding:"required"` // YYYY-MM-DD
}

// Generate expands a recurring template into bookings up to the given date.
func (h *BookingHandler) Generate(c *gin.Context) {
	var req generateBookingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	until, err := time.Parse("2006-01-02", req.Until)
	if err != nil {
		badRequest(c, "until must be YYYY-MM-DD")
		return
	}
	created, err := h.svc.GenerateFromTemplate(c.Request.Context(), types.ID(c.Param("id")), until)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]rideResponse, len(created))
	for i, r := range created {
		out[i] = toRideResponse(r)
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(created), "rides": out})
}

type rideResponse struct {
	ID      string `json:"id"`
	RiderID string `json:"rider_id"`

	BookingType string `json:"booking_type"`
	Priority    string `json:"priority"`
	Purpose     string `json:"purpose,omitempty"`
	Status      string `json:"status"`

	PickupAddress  string      `json:"pickup_address"`
	Pickup         types.Point `json:"pickup"`
	DropoffAddress string      `json:"dropoff_address"`
	Dropoff        types.Point `json:"dropoff"`

	PickupAt             time.Time `json:"pickup_at"`
	EstimatedDurationMin int       `json:"estimated_duration_min"`
	EstimatedDistanceKm  float64   `json:"estimated_distance_km"`
	EstimatedFareCents   int64     `json:"estimated_fare_cents"`
	Currency             string    `json:"currency"`

	WheelchairRequired  bool     `json:"wheelchair_required"`
	AssistanceRequired  []string `json:"assistance_required,omitempty"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`

	ReturnPickupAt *time.Time `json:"return_pickup_at,omitempty"`

	DriverID  *types.ID `json:"driver_id,omitempty"`
	VehicleID *types.ID `json:"vehicle_id,omitempty"`

	CancellationReason   string `json:"cancellation_reason,omitempty"`
	CancellationFeeCents *int64 `json:"cancellation_fee_cents,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func toRideResponse(r *ride.Request) rideResponse {
	resp := rideResponse{
		ID:                   string(r.ID),
		RiderID:              string(r.RiderID),
		BookingType:          string(r.BookingType),
		Priority:             string(r.Priority),
		Purpose:              r.Purpose,
		Status:               string(r.Status),
		PickupAddress:        r.PickupAddress,
		Pickup:               r.Pickup,
		DropoffAddress:       r.DropoffAddress,
		Dropoff:              r.Dropoff,
		PickupAt:             r.PickupAt,
		EstimatedDurationMin: r.EstimatedDurationMin,
		EstimatedDistanceKm:  r.EstimatedDistanceKm,
		EstimatedFareCents:   r.EstimatedFare.Amount,
		Currency:             r.EstimatedFare.Currency,
		WheelchairRequired:   r.WheelchairRequired,
		AssistanceRequired:   r.AssistanceRequired,
		SpecialRequirements:  r.SpecialRequirements,
		ReturnPickupAt:       r.ReturnPickupAt,
		DriverID:             r.DriverID,
		VehicleID:            r.VehicleID,
		CancellationReason:   r.CancellationReason,
		CreatedAt:            r.CreatedAt,
	}
	if r.CancellationFee != nil {
		resp.CancellationFeeCents = &r.CancellationFee.Amount
	}
	return resp
}
