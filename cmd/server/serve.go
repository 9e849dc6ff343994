package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"workerhub/internal/audit"
	"workerhub/internal/audit/kafka"
	"workerhub/internal/platform/config"
	"workerhub/internal/platform/httpserver"
	"workerhub/internal/platform/logger"
	"workerhub/internal/platform/metrics"
	"workerhub/internal/platform/postgres"
	platformredis "workerhub/internal/platform/redis"
	"workerhub/internal/platform/tracing"
	httptransport "workerhub/internal/transport/http"
	"workerhub/internal/transport/socketio"
	"workerhub/internal/workers/hub"
	"workerhub/internal/workers/store"
	filestore "workerhub/internal/workers/store/file"
	pgstore "workerhub/internal/workers/store/postgres"
	redisstore "workerhub/internal/workers/store/redis"
	"workerhub/internal/workers/validation"
)

// runServe wires the hub, its store and the HTTP surface, and runs until
// SIGINT or SIGTERM. Shutdown order: HTTP and socket.io stop first, then the
// hub, then queued snapshot writes are flushed.
func runServe(parent context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Trace, os.Stdout)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()
	durable := store.NewDurable(backend, store.WithLogger(log), store.WithMetrics(m))

	feed, closeFeed, err := openFeed(ctx, cfg, log, m)
	if err != nil {
		return err
	}

	h, err := hub.New(durable,
		hub.WithLogger(log),
		hub.WithMetrics(m),
		hub.WithValidator(validation.New(cfg.Bounds)),
		hub.WithMaxWorkers(cfg.Registry.MaxWorkers),
		hub.WithSubscriberBuffer(cfg.Registry.SubscriberBuffer),
		hub.WithRateLimit(cfg.RateLimit),
		hub.WithPublisher(feed),
	)
	if err != nil {
		return fmt.Errorf("create hub: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.Run(hubCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	<-h.Ready()

	sio := socketio.New(hubCtx, h, log, cfg.Server.CORSOrigin)
	router := httptransport.NewRouter(
		httptransport.NewHandler(h, log),
		promhttp.Handler(),
		sio.Handler(),
		log,
	)
	srv := httpserver.New(cfg.Server.Addr(), router)

	g.Go(func() error {
		log.Info("workerhub listening", "addr", srv.Addr, "store", cfg.Store.Backend, "version", version)
		err := httpserver.Serve(gctx, srv, cfg.Server.ShutdownTimeout)
		sio.Close()
		stopHub()
		return err
	})

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := durable.Close(flushCtx); err != nil {
		log.Error("pending snapshot writes not flushed", "error", err)
	}
	if err := closeFeed(flushCtx); err != nil {
		log.Warn("change feed not flushed", "error", err)
	}
	if err := tp.Shutdown(flushCtx); err != nil {
		log.Warn("spans not flushed", "error", err)
	}
	log.Info("workerhub stopped")
	return runErr
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Backend, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis snapshot store", "key", cfg.Redis.Key)
		return redisstore.New(client, redisstore.WithKey(cfg.Redis.Key)), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s := pgstore.New(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres snapshot store")
		return s, func() { _ = db.Close() }, nil

	default:
		log.Info("using file snapshot store", "path", cfg.Store.DataFile)
		return filestore.New(cfg.Store.DataFile), func() {}, nil
	}
}

func openFeed(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (audit.Publisher, func(context.Context) error, error) {
	if !cfg.Kafka.Enabled() {
		return audit.Nop{}, func(context.Context) error { return nil }, nil
	}
	p, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(log), kafka.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	if err := p.EnsureTopic(ctx, 1, 1); err != nil {
		log.Warn("could not ensure change feed topic", "topic", cfg.Kafka.Topic, "error", err)
	}
	log.Info("publishing change feed", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return p, p.Close, nil
}
