package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-gifclip-service/internal/infra/archive"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/config"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/email"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/gif"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-gifclip-service/internal/infra/minio"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-gifclip-service/internal/usecase"
	"github.com/fiapx/fiapx-gifclip-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting "+cfg.ServiceName,
		zap.Float64("gif_max_duration", cfg.GifMaxDuration),
		zap.Int("gif_fps", cfg.GifFPS),
		zap.Int("workers", cfg.WorkerCount),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, cfg.ServiceName)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		GifBucket:    cfg.MinIOGifBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusRoutingKey)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	repo := postgres.NewJobRepository(pool)
	decoder := ffmpeg.NewDecoder(ffmpeg.NewProber(cfg.FFprobeTimeout), cfg.DecodeBufferFrames, log)
	renderer := usecase.NewClipRenderer(decoder, gif.NewEncoder(cfg.GifDither), log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewCreateGifUseCase(
		repo, storage, renderer, archive.NewFrameArchiver(),
		statusPub, dlqPub, notifier,
		log,
		usecase.CreateGifConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
			Defaults: usecase.ClipRequest{
				Sampler:    cfg.SamplerConfig(),
				Correction: cfg.CorrectorConfig(),
			},
			ArchiveFrames: cfg.GifArchiveFrames,
			Limits:        cfg.Limits(),
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log, map[string]metrics.HealthCheck{
		"postgres": pool.Ping,
		"minio":    storage.Ping,
		"rabbitmq": func(context.Context) error {
			if rmqConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	})

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:              cfg.RabbitMQURL,
		Queue:            cfg.RabbitMQJobQueue,
		RoutingKey:       cfg.RabbitMQJobRoutingKey,
		Exchange:         cfg.RabbitMQExchange,
		DLQ:              cfg.RabbitMQDLQ,
		StatusQueue:      cfg.RabbitMQStatusQueue,
		StatusRoutingKey: cfg.RabbitMQStatusRoutingKey,
		Prefetch:         cfg.RabbitMQPrefetch,
		WorkerCount:      cfg.WorkerCount,
		BaseDelayMs:      cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info(cfg.ServiceName + " started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info(cfg.ServiceName + " stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
