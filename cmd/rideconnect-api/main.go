// README: Entry point; loads config, wires stores and services, starts the
// HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rideconnect/internal/config"
	"rideconnect/internal/dispatch"
	"rideconnect/internal/geo"
	httptransport "rideconnect/internal/http"
	"rideconnect/internal/http/handlers"
	"rideconnect/internal/infra"
	"rideconnect/internal/logging"
	"rideconnect/internal/modules/booking"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
	"rideconnect/internal/modules/matching"
	"rideconnect/internal/modules/pricing"
	"rideconnect/internal/modules/ride"
	"rideconnect/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	bounds := geo.LisbonBounds()
	geocoder := geo.NewNominatim(cfg.Geocoding.NominatimURL, bounds)
	router := geo.NewORS(cfg.Geocoding.ORSURL, cfg.Geocoding.ORSKey)

	wsDispatcher := dispatch.NewWSDispatcher()
	notifiers := dispatch.Multi{dispatch.LogNotifier{Log: logger}, wsDispatcher}
	var kafkaDispatcher *dispatch.KafkaDispatcher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		kafkaDispatcher = dispatch.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaDispatcher.Close()
		notifiers = append(notifiers, kafkaDispatcher)
	}

	var gateway payments.Gateway = payments.NoopGateway{}
	if cfg.Stripe.Key != "" {
		gateway = payments.NewStripeGateway(cfg.Stripe.Key)
	}

	pricingSvc := pricing.NewService(pricing.DefaultConfig())

	rideStore := ride.NewStore(dbPool)
	templateStore := ride.NewTemplateStore(dbPool)
	driverStore := driver.NewStore(dbPool, redisClient)
	calendarStore := calendar.NewStore(dbPool)
	offerStore := matching.NewStore(dbPool)

	calendarSvc := calendar.NewService(calendarStore, rideStore, pricingSvc, cfg.Calendar, logger)
	matchingSvc := matching.NewService(offerStore, driverStore, rideStore, calendarSvc,
		pricingSvc, notifiers, cfg.Matching, logger)
	bookingSvc := booking.NewService(rideStore, templateStore, matchingSvc, geocoder, router,
		calendarSvc, gateway, pricingSvc, notifiers, cfg.Booking, bounds, logger)

	engine := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:   bookingSvc,
		Calendar:  calendarSvc,
		Offers:    matchingSvc,
		Locations: driverStore,
		Suggester: geocoder,
		WS:        handlers.NewWSHandler(wsDispatcher, logger),
		APIKey:    cfg.HTTP.APIKey,
		Log:       logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: engine}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "err", err)
	}
}
