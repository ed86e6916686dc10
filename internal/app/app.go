package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/gateway"
	"github.com/rustamdavlatov/checkout/internal/health"
	"github.com/rustamdavlatov/checkout/internal/messaging/kafka"
	"github.com/rustamdavlatov/checkout/internal/metrics"
	"github.com/rustamdavlatov/checkout/internal/service/assembler"
	"github.com/rustamdavlatov/checkout/internal/service/checkout"
	"github.com/rustamdavlatov/checkout/internal/service/idempotency"
	"github.com/rustamdavlatov/checkout/internal/service/outbox"
	"github.com/rustamdavlatov/checkout/internal/service/pricing"
	httptransport "github.com/rustamdavlatov/checkout/internal/transport/http"
	"github.com/rustamdavlatov/checkout/internal/version"
)

// Run собирает сервис и держит его до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL)

	var transactionAssembler *assembler.Assembler
	if kafkaProducer != nil {
		transactionAssembler = assembler.NewAssemblerWithKafka(
			deps.Drafts,
			gatewayClient,
			deps.Outbox,
			deps.Timeline,
			kafkaProducer,
			logger,
		)
	} else {
		transactionAssembler = assembler.NewAssembler(
			deps.Drafts,
			gatewayClient,
			deps.Outbox,
			deps.Timeline,
			logger,
		)
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()
	resolver := pricing.NewResolver(deps.Prices, logger.WithField("layer", "pricing"))

	service := checkout.NewService(checkout.Deps{
		Drafts:    deps.Drafts,
		Variants:  deps.Variants,
		Kassy:     deps.Kassy,
		Plans:     deps.Plans,
		Stock:     deps.Stock,
		Resolver:  resolver,
		Assembler: transactionAssembler,
		Timeline:  deps.Timeline,
		Logger:    logger.WithField("layer", "service"),
		Metrics:   checkoutMetrics,
	})

	handler := httptransport.NewHandler(service, deps.Idempotency, logger.WithField("layer", "http"))
	router := httptransport.NewRouter(handler, checkoutMetrics)

	healthHandler := health.NewHandler(version.String())
	healthHandler.Register("outbox", health.NewOutboxBacklogChecker(deps.Outbox, cfg.OutboxMaxPending))
	healthHandler.Register("gateway", health.NewBreakerChecker("gateway", func() string {
		return gatewayClient.BreakerState().String()
	}))
	if store := deps.Store(); store != nil {
		healthHandler.Register("postgres", health.NewCheckFunc("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	// Outbox worker имеет смысл только при живом брокере: без него события
	// остаются pending и попадают в backlog-проверку /healthz.
	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicTransactionEvents)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(deps.Outbox, publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		go worker.Run(ctx)
	}

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	go cleanup.Run(ctx)

	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.APIAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает /metrics и health-обработчики.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
