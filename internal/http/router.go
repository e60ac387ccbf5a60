// README: HTTP route registration; delegates to module services.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rideconnect/internal/http/handlers"
	"rideconnect/internal/http/middleware"
)

// RouterDeps collects the services the API surface exposes.
type RouterDeps struct {
	Booking   handlers.BookingService
	Calendar  handlers.CalendarService
	Offers    handlers.OfferService
	Locations handlers.LocationStore
	Suggester handlers.Suggester
	WS        *handlers.WSHandler

	APIKey string
	Log    *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.APIKey(deps.APIKey))

	bookingHandler := handlers.NewBookingHandler(deps.Booking)
	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.PATCH("/bookings/:id", bookingHandler.Modify)
	api.POST("/templates/:id/bookings", bookingHandler.Generate)

	driverHandler := handlers.NewDriverHandler(deps.Calendar, deps.Locations)
	api.PUT("/drivers/:id/availability", driverHandler.UpdateAvailability)
	api.GET("/drivers/:id/schedule", driverHandler.Schedule)
	api.GET("/drivers/:id/suggestions", driverHandler.Suggestions)
	api.PUT("/drivers/:id/location", driverHandler.UpdateLocation)
	api.POST("/drivers/:id/offline", driverHandler.Offline)

	offerHandler := handlers.NewOfferHandler(deps.Offers)
	api.GET("/drivers/:id/offers", offerHandler.ListForDriver)
	api.POST("/offers/:id/respond", offerHandler.Respond)

	geoHandler := handlers.NewGeoHandler(deps.Suggester)
	api.GET("/geo/suggest", geoHandler.Suggest)

	if deps.WS != nil {
		r.GET("/ws/drivers/:id", deps.WS.AttachDriver)
		r.GET("/ws/riders/:id", deps.WS.AttachRider)
	}

	return r
}
