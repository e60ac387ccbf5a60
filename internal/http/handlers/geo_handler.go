// README: Address autocomplete handler.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rideconnect/internal/geo"
)

// Suggester produces address completions within the service area.
type Suggester interface {
	Suggest(ctx context.Context, partial string, limit int) []geo.Location
}

type GeoHandler struct {
	suggester Suggester
}

func NewGeoHandler(s Suggester) *GeoHandler {
	return &GeoHandler{suggester: s}
}

func (h *GeoHandler) Suggest(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	results := h.suggester.Suggest(c.Request.Context(), q, limit)
	out := make([]gin.H, len(results))
	for i, loc := range results {
		out[i] = gin.H{
			"display_name": loc.DisplayName,
			"point":        loc.Point,
			"confidence":   loc.Confidence,
		}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}
