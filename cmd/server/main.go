package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"traffic-telemetry/internal/api"
	"traffic-telemetry/internal/broadcast"
	"traffic-telemetry/internal/platform/config"
	"traffic-telemetry/internal/platform/logger"
	"traffic-telemetry/internal/platform/metrics"
	"traffic-telemetry/internal/traffic"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8000")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	interval := config.GetEnvDuration("BROADCAST_INTERVAL", broadcast.DefaultInterval)
	deliveryTimeout := config.GetEnvDuration("DELIVERY_TIMEOUT", broadcast.DefaultDeliveryTimeout)
	junctionsFile := config.GetEnv("JUNCTIONS_FILE", "")
	seed := config.GetEnvUint64("RANDOM_SEED", 0)
	wsRate := config.GetEnvFloat("WS_CONNECT_RATE", 5)
	wsBurst := config.GetEnvInt("WS_CONNECT_BURST", 10)
	mqttBroker := config.GetEnv("MQTT_BROKER", "")
	mqttTopic := config.GetEnv("MQTT_TOPIC", "traffic/updates")
	mqttClientID := config.GetEnv("MQTT_CLIENT_ID", "traffic-telemetry")

	log := logger.New(logLevel, logFormat)

	reg, err := loadRegistry(junctionsFile)
	if err != nil {
		log.Error("load junctions", "file", junctionsFile, "error", err)
		os.Exit(1)
	}

	rng := traffic.NewRand(seed)
	gen := traffic.NewSimulatedGenerator(rng)
	builder := traffic.NewBuilder(reg, gen, traffic.NewRuleOptimizer(rng))

	met := metrics.New()
	store := broadcast.NewInMemoryStore()
	subs := broadcast.NewRegistry(deliveryTimeout, log, met)
	loop := broadcast.NewLoop(broadcast.LoopConfig{
		Builder:     builder,
		Subscribers: subs,
		Store:       store,
		Interval:    interval,
		Log:         log,
		Metrics:     met,
	})

	svc := api.NewService(reg, store, seed)
	h := api.NewHandler(svc, loop, rate.NewLimiter(rate.Limit(wsRate), wsBurst), log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSubscribers(loop.Subscribers()) }).ServeHTTP(w, r)
	})
	r.Get("/", h.Root)
	r.Get("/ws", h.Subscribe)
	r.Route("/api", func(r chi.Router) {
		r.Get("/detections", h.GetDetections)
		r.Get("/signals", h.GetSignals)
		r.Get("/junctions", h.GetJunctions)
		r.Get("/junctions/{junction_id}", h.GetJunction)
		r.Get("/analytics", h.GetAnalytics)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mqttBroker != "" {
		resubscribe := func(c broadcast.Publisher) {
			if err := broadcast.ConnectMQTT(ctx, loop, c, mqttTopic, 0); err != nil {
				log.Warn("mqtt subscribe", "topic", mqttTopic, "error", err)
			}
		}
		client, err := broadcast.DialMQTT(ctx, mqttBroker, mqttClientID, log, resubscribe)
		if err != nil {
			log.Error("mqtt connect", "broker", mqttBroker, "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	log.Info("server starting",
		slog.String("port", port),
		slog.Int("junctions", reg.Len()),
		slog.Duration("broadcast_interval", interval),
		slog.String("log_level", logLevel),
		slog.Bool("mqtt", mqttBroker != ""),
	)

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func loadRegistry(path string) (*traffic.Registry, error) {
	if path == "" {
		return traffic.DefaultRegistry(), nil
	}
	var f traffic.RegistryFile
	if err := config.LoadYAML(path, &f); err != nil {
		return nil, err
	}
	return f.Registry()
}
