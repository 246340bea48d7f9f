package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"pixkeys/internal/pixkey/adapters/events"
	"pixkeys/internal/pixkey/adapters/notification"
	"pixkeys/internal/pixkey/adapters/registry"
	"pixkeys/internal/pixkey/adapters/userdirectory"
	"pixkeys/internal/pixkey/app"
	pixmetrics "pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/store/memory"
	pgstore "pixkeys/internal/pixkey/store/postgres"
	"pixkeys/internal/pixkey/store/rediscache"
	"pixkeys/internal/pixkey/transport/messaging"
	"pixkeys/internal/pixkey/transport/ops"
	"pixkeys/internal/platform/config"
	"pixkeys/internal/platform/httpserver"
	"pixkeys/internal/platform/kafka/admin"
	"pixkeys/internal/platform/kafka/consumer"
	"pixkeys/internal/platform/kafka/producer"
	"pixkeys/internal/platform/logger"
	"pixkeys/internal/platform/metrics"
	"pixkeys/internal/platform/postgres"
	"pixkeys/internal/platform/redis"
	"pixkeys/pkg/platform/circuit"
)

// main wires stores, adapters and the broker around the engine, then runs
// the consumer, the reconciliation jobs and the ops server until a signal.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pixkeys: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := pixmetrics.New(reg)

	var checks []ops.Check
	stores := app.MemoryStores(memory.NewStores())

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := pgstore.MigrateUp(db); err != nil {
				return err
			}
		}
		stores = postgresStores(db, cfg.Database, stores)
		checks = append(checks, ops.Check{Name: "database", Fn: db.PingContext})
		log.Info("using postgres stores")
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		stores.Cache = rediscache.NewDecodeCache(rdb.Client)
		stores.Locker = rediscache.NewLocker(rdb.Client)
		checks = append(checks, ops.Check{Name: "redis", Fn: rdb.Health})
	}

	registryClient, err := registry.NewClient(registry.Config{
		BaseURL: cfg.Registry.BaseURL,
		ISPB:    cfg.Engine.ISPB,
		Timeout: cfg.Registry.Timeout,
	})
	if err != nil {
		return err
	}
	gateway := registry.NewResilient(registryClient,
		registry.WithMetrics(m),
		registry.WithLogger(log),
		registry.WithBreaker(circuit.New("registry",
			circuit.WithFailureThreshold(cfg.Registry.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.Registry.BreakerSuccesses),
			circuit.WithCooldown(cfg.Registry.BreakerCooldown),
		)),
	)
	users, err := userdirectory.New(cfg.Users.BaseURL, cfg.Users.Timeout)
	if err != nil {
		return err
	}

	adapters := app.Adapters{Registry: gateway, Users: users}
	var prod *producer.Producer
	if cfg.KafkaEnabled() {
		prod, err = producer.New(producer.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
			Linger:   cfg.Kafka.Linger,
		})
		if err != nil {
			return err
		}
		defer prod.Close()
		broker := events.NewBroker(prod)
		adapters.KeyEvents = broker
		adapters.ClaimEvents = broker
		adapters.Alerter = broker
		adapters.DecodedEvents = broker.Decoded()
		adapters.Notifier = notification.NewPublisher(prod)
		checks = append(checks, ops.Check{Name: "kafka", Fn: prod.Ping})
	} else {
		log.Warn("no kafka brokers configured, events stay in process")
		recorder := events.NewRecorder()
		adapters.KeyEvents = recorder
		adapters.ClaimEvents = recorder
		adapters.Alerter = recorder
		adapters.DecodedEvents = recorder.Decoded()
		adapters.Notifier = notification.NewLogger(log)
	}

	engine, err := app.New(cfg.Engine, stores, adapters, log, m)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	var cons *consumer.Consumer
	if prod != nil {
		topics := engine.Router.Topics()
		if err := admin.EnsureTopics(ctx, prod.Client(), admin.TopicSpec{
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}, messaging.ProvisionTopics(topics)...); err != nil {
			return err
		}
		dispatcher, err := messaging.NewDispatcher(engine.Router, prod,
			messaging.WithRetryPolicy(messaging.RetryPolicy{
				MaxAttempts:    cfg.Kafka.MaxAttempts,
				InitialBackoff: cfg.Kafka.InitialBackoff,
				MaxBackoff:     cfg.Kafka.MaxBackoff,
			}),
			messaging.WithDispatcherLogger(log),
			messaging.WithDispatcherMetrics(m),
		)
		if err != nil {
			return err
		}
		cons, err = consumer.New(consumer.Config{
			Brokers:  cfg.Kafka.Brokers,
			Group:    cfg.Kafka.Group,
			Topics:   topics,
			ClientID: cfg.Kafka.ClientID,
		}, dispatcher, log)
		if err != nil {
			return err
		}
	}

	opsHandler := ops.New(reg, engine.Runner, log, checks...)
	srv := httpserver.New(cfg.OpsAddr, opsHandler.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer reg.Running("ops")()
		return httpserver.Serve(gctx, srv, log)
	})
	g.Go(func() error {
		defer reg.Running("reconciler")()
		return engine.Runner.Run(gctx)
	})
	if cons != nil {
		g.Go(func() error {
			defer reg.Running("consumer")()
			defer cons.Close(context.WithoutCancel(gctx))
			return cons.Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("pixkeys stopped", "error", err)
	return err
}

// postgresStores replaces the persistent stores and keeps the cache and lock
// from base.
func postgresStores(db *sql.DB, cfg config.DatabaseConfig, base app.Stores) app.Stores {
	base.Keys = pgstore.NewKeyStore(db)
	base.Claims = pgstore.NewClaimStore(db)
	base.History = pgstore.NewHistoryStore(db)
	base.Verifications = pgstore.NewVerificationStore(db)
	base.Limits = pgstore.NewDecodeLimitStore(db)
	base.Decoded = pgstore.NewDecodedKeyStore(db)
	base.Tx = pgstore.NewTransactor(db, cfg.TxTimeout)
	return base
}
