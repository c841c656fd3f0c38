package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"taxportal/internal/audit"
	"taxportal/internal/backoffice"
	"taxportal/internal/device"
	"taxportal/internal/platform/config"
	"taxportal/internal/platform/httpserver"
	"taxportal/internal/platform/logger"
	"taxportal/internal/platform/metrics"
	"taxportal/internal/platform/postgres"
	"taxportal/internal/platform/redis"
	"taxportal/internal/ratelimit"
	"taxportal/internal/wizard"
	"taxportal/internal/wizard/handler"
	"taxportal/internal/wizard/service"
	"taxportal/internal/wizard/store"
	"taxportal/pkg/platform/circuit"
	"taxportal/pkg/platform/httputil"
	"taxportal/pkg/platform/middleware/admin"
	"taxportal/pkg/platform/middleware/metadata"
	request "taxportal/pkg/platform/middleware/request"
	"taxportal/pkg/platform/middleware/requesttime"
	"taxportal/pkg/platform/middleware/session"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Minute
)

// main wires the wizard engine to its collaborators. Each backing service is
// optional: without REDIS_URL, DATABASE_URL or KAFKA_BROKERS the process runs
// on in-memory stand-ins.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("taxportal stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	settings, err := config.LoadWizardSettings(cfg.Wizard.SettingsFile)
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	g, gctx := errgroup.WithContext(ctx)

	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	wizardStore, health := openStore(gctx, g, cache, log)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	office, err := openBackOffice(ctx, db, log)
	if err != nil {
		return err
	}

	publisher, closeAudit, err := openAudit(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	flows, err := wizard.NewRegistry(settings.Enabled)
	if err != nil {
		return err
	}
	log.Info("wizards registered", "wizards", flows.Names())

	svc := service.New(flows, wizardStore, office,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithTTL(cfg.Wizard.CacheTTL, settings),
		service.WithAuditPublisher(publisher),
		service.WithDevices(device.NewService(true)),
	)
	limits := ratelimit.New(openLimitStore(gctx, g, cache, log), log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithRejectHook(func(class string) { m.RateLimited.WithLabelValues(class).Inc() }),
	)
	h := handler.New(svc, log, handler.WithReferenceLimit(limits.Limit(ratelimit.Policy{
		Class:  "reference",
		Limit:  cfg.RateLimit.ReferenceLimit,
		Window: cfg.RateLimit.ReferenceWindow,
	})))
	sessions := session.NewManager(cfg.Session.SigningKey, cfg.Session.TTL, log,
		session.WithSecureCookie(cfg.Session.SecureCookie))

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))

	r.Get("/healthz", healthz(health, db))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		h.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.Server.AdminToken, log))
		h.RegisterAdmin(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	g.Go(func() error {
		log.Info("starting taxportal", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns the Redis store when a client is configured and the
// in-memory store otherwise. In-memory stores are purged in the background
// until ctx ends.
func openStore(ctx context.Context, g *errgroup.Group, client *redis.Client, log *slog.Logger) (service.Store, func(context.Context) error) {
	if client != nil {
		log.Info("wizard cache: redis")
		return store.NewRedis(client.Client), client.Health
	}

	log.Warn("wizard cache: in-memory, state is lost on restart")
	mem := store.NewInMemory()
	sweep(ctx, g, "wizards", mem.PurgeExpired, log)
	return mem, nil
}

func openLimitStore(ctx context.Context, g *errgroup.Group, client *redis.Client, log *slog.Logger) ratelimit.Store {
	if client != nil {
		return ratelimit.NewRedis(client.Client)
	}
	mem := ratelimit.NewInMemory()
	sweep(ctx, g, "rate limit windows", mem.PurgeExpired, log)
	return mem
}

// sweep runs purge every purgeInterval until ctx ends.
func sweep(ctx context.Context, g *errgroup.Group, what string, purge func() int, log *slog.Logger) {
	g.Go(func() error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := purge(); n > 0 {
					log.Debug("purged expired "+what, "count", n)
				}
			}
		}
	})
}

func openBackOffice(ctx context.Context, db *sql.DB, log *slog.Logger) (backoffice.Client, error) {
	var client backoffice.Client
	if db != nil {
		pg := backoffice.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		log.Info("back office: postgres")
		client = pg
	} else {
		log.Warn("back office: in-memory")
		client = backoffice.NewInMemory()
	}
	return backoffice.NewGuarded(client, circuit.New("backoffice",
		circuit.WithFailureThreshold(5),
		circuit.WithCooldown(30*time.Second),
	), log), nil
}

// openAudit returns the publisher and a func that drains it and releases the sink.
func openAudit(ctx context.Context, cfg config.Config, m *metrics.Metrics, log *slog.Logger) (*audit.Publisher, func(), error) {
	var sink audit.Sink = audit.NewLogSink(log)
	release := func() {}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, 3, 1); err != nil {
			kafka.Close()
			return nil, nil, err
		}
		log.Info("audit sink: kafka", "topic", cfg.Kafka.Topic)
		sink, release = kafka, kafka.Close
	}
	publisher := audit.NewPublisher(sink,
		audit.WithAsyncBuffer(cfg.Wizard.AuditBuffer),
		audit.WithLogger(log),
		audit.WithDropHook(m.AuditDropped.Inc),
	)
	return publisher, func() {
		publisher.Close()
		release()
	}, nil
}

func healthz(cache func(context.Context) error, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if cache != nil {
			if err := cache(ctx); err != nil {
				status["status"], status["cache"] = "degraded", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status["status"], status["backoffice"] = "degraded", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
