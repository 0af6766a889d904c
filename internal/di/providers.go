package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/repository"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/service/stream"
	"FinCast/internal/services/drift"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/features"
	"FinCast/internal/services/macrofeed"
	"FinCast/internal/usecase"
	pkgcache "FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
	"FinCast/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client with candle tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

	if err := client.InitSchema(ctx, candleSchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.CandlesTable)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// candleSchemaStatements returns the DDL for the candle tables, one per
// supported timeframe, so every resolution the API accepts has a backing
// table.
func candleSchemaStatements(db, table string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)}
	for _, tf := range repository.AllTimeframes() {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s_%s (bucket DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=MergeTree ORDER BY (symbol, bucket)",
			table, tf))
	}
	return stmts
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
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

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCandleStore creates the ClickHouse candle repository.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.CandleStore {
	store := internalrepo.NewCHCandleStore(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.CandlesTable)
	store.SetLogger(l)
	return store
}

// ProvidePredictionPublisher creates the Kafka prediction publisher.
func ProvidePredictionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.PredictionsTopic)
}

// ProvideSnapshotStore creates the Redis snapshot repository.
func ProvideSnapshotStore(client *redis.Client, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewRedisSnapshotStore(client, cfg.Redis.SnapshotTTL)
}

// ProvidePredictionCache creates the short-TTL prediction cache. Without a
// Redis address it degrades to the in-process TTL cache.
func ProvidePredictionCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Addr == "" {
		return icache.NewTTLCache()
	}
	return icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideFeatureService creates the feature extraction service.
func ProvideFeatureService(cfg *config.Config) *features.Service {
	return features.NewService(cfg.Forecast.Timeframe)
}

// ProvideEnsembleEngine creates the ensemble prediction engine.
func ProvideEnsembleEngine(cfg *config.Config, l *applogger.Logger) (*ensemble.Engine, error) {
	eng, err := ensemble.NewEngine(ensemble.Config{
		PerformanceWindow: cfg.Forecast.Ensemble.PerformanceWindow,
		MinPerfSamples:    cfg.Forecast.Ensemble.MinPerfSamples,
		MCSamples:         cfg.Forecast.Ensemble.MCSamples,
		MCSeed:            cfg.Forecast.Ensemble.MCSeed,
		MacroWeight:       cfg.Forecast.Ensemble.MacroWeight,
		SentimentWeight:   cfg.Forecast.Ensemble.SentimentWeight,
		AdjustmentCap:     cfg.Forecast.Ensemble.AdjustmentCap,
	})
	if err != nil {
		return nil, err
	}
	eng.SetLogger(l)
	return eng, nil
}

// ProvideDriftDetector creates the drift detector.
func ProvideDriftDetector(cfg *config.Config, l *applogger.Logger) (*drift.Detector, error) {
	det, err := drift.NewDetector(drift.Config{
		Capacity:        cfg.Forecast.Drift.Capacity,
		DetectionWindow: cfg.Forecast.Drift.DetectionWindow,
		BaselineWindow:  cfg.Forecast.Drift.BaselineWindow,
		MinBaseline:     cfg.Forecast.Drift.MinBaseline,
	})
	if err != nil {
		return nil, err
	}
	det.SetLogger(l)
	return det, nil
}

// ProvideMacrofeed creates the optional macro/sentiment feed client, nil
// when disabled. Bundles are cached in a memory+redis layered cache since
// they refresh far slower than bars.
func ProvideMacrofeed(cfg *config.Config) *macrofeed.Client {
	if !cfg.Macrofeed.Enabled {
		return nil
	}
	client := macrofeed.New(cfg.Macrofeed.BaseURL, cfg.Macrofeed.Timeout)

	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("fincast:feed"),
	)
	if err != nil {
		// Feed still works without a cache.
		return client
	}
	return client.WithCache(pkgcache.NewLayeredCache(rc), 5*time.Minute)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	return host, util.ParseIntDefault(portStr, 6379)
}

// ProvideForecaster assembles the orchestration service.
func ProvideForecaster(
	cfg *config.Config,
	feats *features.Service,
	engine *ensemble.Engine,
	detector *drift.Detector,
	m repository.Metrics,
	store repository.CandleStore,
	pub repository.Publisher,
	snaps repository.SnapshotStore,
	feed *macrofeed.Client,
	cache icache.BytesCache,
	l *applogger.Logger,
) *usecase.Forecaster {
	fc := usecase.NewForecaster(usecase.ForecasterConfig{
		Lookback:      cfg.Forecast.Lookback,
		HistoryBars:   cfg.Forecast.HistoryBars,
		MinSamples:    cfg.Forecast.Drift.MinBaseline,
		AccuracyFloor: 45,
		CacheTTL:      cfg.Redis.CacheTTL,
	}, feats, engine, detector, m).
		WithCandleStore(store).
		WithPublisher(pub).
		WithSnapshots(snaps).
		WithMacrofeed(feed).
		WithCache(cache)
	fc.SetLogger(l)
	return fc
}

// ProvideBarsHandler registers the handler for the bars topic.
func ProvideBarsHandler(forecaster *usecase.Forecaster, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, forecaster, m)
}

// ProvideTickStream creates the WebSocket tick stream.
func ProvideTickStream(cfg *config.Config) repository.TickStream {
	return stream.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideTickCollector creates the live tick collector use case.
func ProvideTickCollector(
	ts repository.TickStream,
	forecaster *usecase.Forecaster,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TickCollector {
	return usecase.NewTickCollector(ts, forecaster, m, cfg.Stream.BarInterval)
}

// ProvideJobQueue creates the Redis retraining-job queue with its worker job
// registered.
func ProvideJobQueue(client *redis.Client, forecaster *usecase.Forecaster, cfg *config.Config, l *applogger.Logger) *queue.RedisQueue {
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, client, queue.ModeProducerConsumer,
		queue.WithKeyPrefix("fincast:"+cfg.Forecast.RetrainQueue),
	)
	q.RegisterJob(usecase.NewSnapshotJob(forecaster, cfg.Stream.Symbols, l))
	return q
}

// ProvideScheduler creates the periodic retraining evaluator.
func ProvideScheduler(forecaster *usecase.Forecaster, q *queue.RedisQueue, m repository.Metrics, cfg *config.Config) *usecase.RetrainingScheduler {
	return usecase.NewRetrainingScheduler(forecaster, q, m, cfg.Forecast.RetrainCheckInterval)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, forecaster *usecase.Forecaster) xhttp.Handler {
	return api.NewForecastEchoHandler(l, forecaster)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	scheduler *usecase.RetrainingScheduler,
	jobQueue *queue.RedisQueue,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient, scheduler, jobQueue)
	app.SetHTTPHandler(httpHandler)
	return app
}
