package di

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/repository"
	"TradeGate/internal/handler/api"
	mid "TradeGate/internal/middleware"
	"TradeGate/internal/order"
	"TradeGate/internal/ratelimit"
	internalrepo "TradeGate/internal/repository"
	"TradeGate/internal/security"
	"TradeGate/internal/service/strikes"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/cache"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	pkgkafka "TradeGate/pkg/kafka"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
	"TradeGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLimiter creates the sliding-window rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(
		ratelimit.WithBurst(cfg.RateLimit.BurstLimit, cfg.RateLimit.BurstWindow),
		ratelimit.WithSustained(cfg.RateLimit.SustainedLimit, cfg.RateLimit.SustainedWindow),
		ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
	)
}

// ProvideSecurityValidator creates the threat-pattern classifier.
func ProvideSecurityValidator(cfg *config.Config) *security.Validator {
	return security.NewValidator(
		security.WithMaxFieldLength(cfg.Validation.MaxFieldLength),
	)
}

// ProvideOrderValidator creates the order semantics validator.
func ProvideOrderValidator(cfg *config.Config) *order.Validator {
	return order.NewValidator(
		order.WithSkew(cfg.Validation.TimestampSkew, cfg.Validation.SignatureSkew),
	)
}

// ProvideStrikeCache picks Redis when configured, else in-memory.
func ProvideStrikeCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Strikes.Enabled {
		return nil, nil
	}
	if cfg.Strikes.Redis.Enabled {
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Strikes.Redis.Host),
			cache.WithRedisPort(cfg.Strikes.Redis.Port),
			cache.WithRedisPassword(cfg.Strikes.Redis.Password),
			cache.WithRedisDB(cfg.Strikes.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("strike cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(
		cache.WithMemoryDefaultTTL(cfg.Strikes.Window),
	), nil
}

// ProvideStrikeTracker creates the repeat-offender tracker, or nil when the
// feature is disabled.
func ProvideStrikeTracker(cfg *config.Config, c cache.Service, log *logger.Logger) *strikes.Tracker {
	if !cfg.Strikes.Enabled || c == nil {
		return nil
	}
	return strikes.NewTracker(c, log,
		strikes.WithThreshold(cfg.Strikes.Threshold),
		strikes.WithWindow(cfg.Strikes.Window),
		strikes.WithBanDuration(cfg.Strikes.BanDuration),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and prepares the audit
// schema. Returns nil when the clickhouse backend is not in play.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Audit.Enabled || cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS tradegate",
		`CREATE TABLE IF NOT EXISTS ` + cfg.Audit.Table + ` (
			ts DateTime64(3),
			client String,
			method LowCardinality(String),
			path String,
			outcome LowCardinality(String),
			field String,
			category LowCardinality(String),
			window LowCardinality(String),
			retry_after Int32,
			detail String
		) ENGINE=MergeTree ORDER BY (outcome, ts)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the kafka
// backend is not in play.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Audit.Enabled || cfg.Audit.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditStorage creates ClickHouse audit storage, or nil without a
// ClickHouse client.
func ProvideAuditStorage(chClient *pkgch.Client, cfg *config.Config) repository.AuditStorage {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseAuditStore(chClient.DB(), cfg.Audit.Table)
}

// ProvideAuditPublisher creates the Kafka audit publisher, or nil without a
// producer.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Audit.Topic)
}

// ProvideAuditProcessor creates the batching audit processor, or nil when
// auditing is disabled.
func ProvideAuditProcessor(
	pub repository.AuditPublisher,
	store repository.AuditStorage,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.AuditProcessor {
	if !cfg.Audit.Enabled {
		return nil
	}
	return usecase.NewAuditProcessor(pub, store, m, log,
		cfg.Audit.Backend, cfg.Audit.BatchSize, cfg.Audit.BatchTimeout)
}

// ProvideKafkaConsumer creates the audit-topic consumer. Only wired when
// events flow through Kafka and ClickHouse is available to materialize them.
func ProvideKafkaConsumer(cfg *config.Config, chClient *pkgch.Client, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Audit.Enabled || cfg.Audit.Backend != "kafka" || chClient == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaAuditHandler registers the handler for the denial topic.
func ProvideKafkaAuditHandler(store repository.AuditStorage, m repository.Metrics, cfg *config.Config) *usecase.KafkaAuditHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaAuditHandler(cfg.Audit.Topic, store, m)
}

// ProvideAdmission assembles the admission middleware.
func ProvideAdmission(
	limiter *ratelimit.Limiter,
	secval *security.Validator,
	m repository.Metrics,
	log *logger.Logger,
	tracker *strikes.Tracker,
	proc *usecase.AuditProcessor,
	cfg *config.Config,
) *mid.Admission {
	opts := []mid.AdmissionOption{
		mid.WithMaxPayload(cfg.Validation.MaxPayloadBytes),
		mid.WithExemptPaths(cfg.Validation.ExemptPaths),
	}
	if tracker != nil {
		opts = append(opts, mid.WithStrikes(tracker))
	}
	if proc != nil {
		opts = append(opts, mid.WithAudit(proc))
	}
	return mid.NewAdmission(limiter, secval, m, log, opts...)
}

// ProvideTradeHandler creates the trading endpoints handler.
func ProvideTradeHandler(log *logger.Logger, semantics *order.Validator) *api.TradeHandler {
	return api.NewTradeHandler(log, semantics)
}

// ProvideLimitsHandler creates the rate-limit standing handler.
func ProvideLimitsHandler(log *logger.Logger, limiter *ratelimit.Limiter) *api.LimitsHandler {
	return api.NewLimitsHandler(log, limiter)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	limiter *ratelimit.Limiter,
	admission *mid.Admission,
	tradeHandler *api.TradeHandler,
	limitsHandler *api.LimitsHandler,
	proc *usecase.AuditProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAuditHandler,
	chClient *pkgch.Client,
	strikeCache cache.Service,
) *server.App {
	return server.New(cfg, log, limiter, admission,
		tradeHandler, limitsHandler, proc, consumer, kh, chClient, strikeCache)
}
