package main

import (
    "bufio"
    "net"
    "net/http"
    "os"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "fleetassign/internal/api"
    "fleetassign/internal/buildinfo"
    "fleetassign/internal/metrics"
)

func main() {
    zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
    if os.Getenv("LOG_PRETTY") == "true" {
        log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
    }

    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init server")
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Assignments
    mux.HandleFunc("/v1/assignments/suggest", srvDeps.SuggestHandler)
    mux.HandleFunc("/v1/assignments/reassign", srvDeps.ReassignHandler)

    // Drivers
    mux.HandleFunc("/v1/drivers", srvDeps.DriversHandler)
    mux.HandleFunc("/v1/drivers/", srvDeps.DriverByIDHandler) // includes /status, /routes

    // Vehicles
    mux.HandleFunc("/v1/vehicles", srvDeps.VehiclesHandler)
    mux.HandleFunc("/v1/vehicles/", srvDeps.VehicleByIDHandler)

    // Orders
    mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)

    // Routes
    mux.HandleFunc("/v1/routes", srvDeps.RoutesHandler)
    mux.HandleFunc("/v1/routes/", srvDeps.RouteByIDHandler) // includes /assign, /events/stream

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)

    // WebSocket event stream
    mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

    // Health and meta
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.HandleFunc("/v1/version", srvDeps.VersionHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(metricsMiddleware(api.RateLimit(mux))),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Info().Str("addr", addr).Str("version", buildinfo.Version).Msg("API listening")
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatal().Err(err).Msg("server error")
    }
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

// SSE needs Flush and the websocket upgrade needs Hijack.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    if h, ok := r.ResponseWriter.(http.Hijacker); ok { return h.Hijack() }
    return nil, nil, http.ErrNotSupported
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        log.Info().
            Str("remote", r.RemoteAddr).
            Str("method", r.Method).
            Str("path", r.URL.Path).
            Int("status", rec.status).
            Dur("duration", time.Since(start)).
            Msg("request")
    })
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
    })
}
