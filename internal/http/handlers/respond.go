// README: Shared response helpers and domain error mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rideconnect/internal/modules/booking"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
	"rideconnect/internal/modules/matching"
	"rideconnect/internal/modules/ride"
)

// writeError maps domain errors onto HTTP statuses. Unknown errors become a
// generic 500 so internals never leak to clients.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, calendar.ErrInvalidWindow),
		errors.Is(err, calendar.ErrBreakOutside):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, matching.ErrWrongDriver):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, ride.ErrTemplateNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, matching.ErrNotFound),
		errors.Is(err, calendar.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrNotModifiable),
		errors.Is(err, calendar.ErrEntryFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrOutsideServiceArea):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
