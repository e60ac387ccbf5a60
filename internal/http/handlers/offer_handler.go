// README: Offer handlers: driver inbox and accept/decline responses.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideconnect/internal/modules/matching"
	"rideconnect/internal/types"
)

// OfferService is the matching surface the handlers call.
type OfferService interface {
	OffersForDriver(ctx context.Context, driverID types.ID) ([]*matching.Offer, error)
	RespondToOffer(ctx context.Context, offerID, driverID types.ID, accept bool, declineReason string) (bool, error)
}

type OfferHandler struct {
	svc OfferService
}

func NewOfferHandler(svc OfferService) *OfferHandler {
	return &OfferHandler{svc: svc}
}

func (h *OfferHandler) ListForDriver(c *gin.Context) {
	offers, err := h.svc.OffersForDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]offerResponse, len(offers))
	for i, o := range offers {
		out[i] = toOfferResponse(o)
	}
	c.JSON(http.StatusOK, gin.H{"offers": out})
}

type respondReq struct {
	DriverID string `json:"driver_id" binding:"required"`
	Accept   bool   `json:"accept"`
	Reason   string `json:"reason"`
}

// Respond settles an offer. A truthful "accepted": false with a 200 means the
// offer expired or another driver won the ride first.
func (h *OfferHandler) Respond(c *gin.Context) {
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	won, err := h.svc.RespondToOffer(c.Request.Context(),
		types.ID(c.Param("id")), types.ID(req.DriverID), req.Accept, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": won})
}

type offerResponse struct {
	ID       string `json:"id"`
	RideID   string `json:"ride_id"`
	Status   string `json:"status"`

	OfferedAt time.Time `json:"offered_at"`
	ExpiresAt time.Time `json:"expires_at"`

	BaseFareCents      int64 `json:"base_fare_cents"`
	BonusCents         int64 `json:"bonus_cents"`
	TotalEarningsCents int64 `json:"total_earnings_cents"`

	DistanceToPickupKm float64                 `json:"distance_to_pickup_km"`
	Score              float64                 `json:"score"`
	Breakdown          matching.ScoreBreakdown `json:"breakdown"`
	PriorityRank       int                     `json:"priority_rank"`
}

func toOfferResponse(o *matching.Offer) offerResponse {
	return offerResponse{
		ID:                 string(o.ID),
		RideID:             string(o.RideID),
		Status:             string(o.Status),
		OfferedAt:          o.OfferedAt,
		ExpiresAt:          o.ExpiresAt,
		BaseFareCents:      o.BaseFare.Amount,
		BonusCents:         o.Bonus.Amount,
		TotalEarningsCents: o.TotalEarnings.Amount,
		DistanceToPickupKm: o.DistanceToPickupKm,
		Score:              o.Score,
		Breakdown:          o.Breakdown,
		PriorityRank:       o.PriorityRank,
	}
}
