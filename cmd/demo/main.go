// The demo binary runs the consent gate against an in-memory telemetry client
// and exposes an HTTP surface to drive it: flip consent per purpose, capture
// events, and inspect the derived configuration and audit trail. Consent can
// optionally come from Redis and the audit trail can optionally ship to Kafka.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"consentgate/internal/audit"
	auditkafka "consentgate/internal/audit/publishers/kafka"
	"consentgate/internal/audit/store/memory"
	"consentgate/internal/consent"
	"consentgate/internal/consent/sources/redisconsent"
	"consentgate/internal/consent/sources/static"
	"consentgate/internal/platform/config"
	"consentgate/internal/platform/httpserver"
	"consentgate/internal/platform/logger"
	platformredis "consentgate/internal/platform/redis"
	"consentgate/internal/reconciler"
	"consentgate/internal/reconciler/metrics"
	"consentgate/internal/telemetry"
	"consentgate/internal/telemetry/telemetrytest"
	httptransport "consentgate/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Debug)

	// The demo's "host telemetry client": an in-memory double with session
	// recording attached, so the recording guard has something to police.
	client := telemetrytest.NewClient(telemetry.Config{
		Enabled:               true,
		SampleRate:            1.0,
		EnableSessionTracking: true,
		MaxBreadcrumbs:        100,
		AttachStacktrace:      true,
		TracesSampleRate:      0.2,
		SendDefaultPII:        false,
	})
	client.SetRecorder(telemetrytest.NewRecorder(telemetrytest.SafeOptions()))

	staticSource := static.New(map[consent.Purpose]bool{
		consent.PurposeFunctional:  true,
		consent.PurposeAnalytics:   false,
		consent.PurposePreferences: false,
		consent.PurposeMarketing:   false,
	})

	getters := staticSource.Getters()
	subscribe := consent.SubscribeFunc(staticSource.Subscribe)
	consentStore := httptransport.ConsentStore(httptransport.StaticStore{Source: staticSource})

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		log.Info("using redis consent source", "addr", cfg.Redis.Addr)
		redisSource, err := redisconsent.New(rdb.Client, redisconsent.WithLogger(log))
		if err != nil {
			log.Error("redis consent source", "error", err)
			os.Exit(1)
		}
		getters = redisSource.Getters()
		subscribe = redisSource.Subscribe
		consentStore = httptransport.RedisStore{Source: redisSource}
		defer rdb.Close()
	}

	source, err := consent.NewSource(getters, consent.WithSubscription(subscribe))
	if err != nil {
		log.Error("consent source", "error", err)
		os.Exit(1)
	}

	auditStore := audit.Store(memory.NewStore())
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		sink, err := auditkafka.New(brokers,
			auditkafka.WithTopic(cfg.Kafka.Topic),
			auditkafka.WithLogger(log))
		if err != nil {
			log.Error("kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		log.Info("shipping audit trail to kafka", "topic", cfg.Kafka.Topic)
		auditStore = sink
	}
	trail := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.Gate.AuditBuffer),
		audit.WithLogger(log))
	defer trail.Close()

	gate, err := reconciler.New(client, source,
		reconciler.WithLogger(log),
		reconciler.WithTimeout(cfg.Gate.ConsentTimeout),
		reconciler.WithQueueLimit(cfg.Gate.QueueLimit),
		reconciler.WithMetrics(metrics.New()),
		reconciler.WithAuditPublisher(trail),
	)
	if err != nil {
		log.Error("build gate", "error", err)
		os.Exit(1)
	}
	gate.Setup(context.Background())
	defer gate.Cleanup()

	handler := httptransport.New(gate, client, consentStore, trail, log)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consent gate demo listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		gate.Flush()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("demo exited", "error", err)
		os.Exit(1)
	}
	log.Info("demo stopped")
}
