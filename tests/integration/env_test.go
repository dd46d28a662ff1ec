package integration

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/archive"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/email"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/gif"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/imaging"
	miniostorage "github.com/fiapx/fiapx-gifclip-service/internal/infra/minio"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-gifclip-service/internal/usecase"
	"github.com/fiapx/fiapx-gifclip-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

const (
	exchange       = "fiapx.video"
	jobQueue       = "video.gif"
	jobRoutingKey  = "video.gif"
	statusQueue    = "video.gif.status"
	statusRouting  = "video.gif.status"
	dlqQueue       = "video.gif.dlq"
	uploadBucket   = "uploads"
	gifBucket      = "gifs"
	minioAccessKey = "minioadmin"
	minioSecretKey = "minioadmin"
)

type environment struct {
	pool        *pgxpool.Pool
	storage     *miniostorage.Storage
	minioClient *miniogo.Client
	rmqConn     *amqp.Connection
	jobs        *rabbitmq.JobPublisher
	log         *zap.Logger
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

// sampleVideo renders a 3 second 30 fps test pattern.
func sampleVideo(ctx context.Context, t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.mp4")
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=320x240:rate=30",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot generate sample video: %v: %s", err, out)
	}
	return path
}

func startEnvironment(ctx context.Context, t *testing.T) *environment {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername(minioAccessKey),
		tcminio.WithPassword(minioSecretKey),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    minioAccessKey,
		SecretKey:    minioSecretKey,
		UploadBucket: uploadBucket,
		GifBucket:    gifBucket,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4(minioAccessKey, minioSecretKey, ""),
	})
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	log, err := logger.New("debug")
	require.NoError(t, err)

	env := &environment{
		pool:        pool,
		storage:     storage,
		minioClient: minioClient,
		rmqConn:     rmqConn,
		log:         log,
	}

	pub, err := rabbitmq.NewPublisher(rmqConn, exchange)
	require.NoError(t, err)
	env.jobs = rabbitmq.NewJobPublisher(pub, jobRoutingKey)

	uc := usecase.NewCreateGifUseCase(
		postgres.NewJobRepository(pool),
		storage,
		usecase.NewClipRenderer(
			ffmpeg.NewDecoder(ffmpeg.NewProber(time.Minute), 8, log),
			gif.NewEncoder(true),
			log,
		),
		archive.NewFrameArchiver(),
		rabbitmq.NewStatusPublisher(pub, statusRouting),
		rabbitmq.NewDLQPublisher(pub, dlqQueue),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", log),
		log,
		usecase.CreateGifConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			Defaults: usecase.ClipRequest{
				Sampler:    sampler.DefaultConfig(),
				Correction: imaging.CorrectorConfig{MaxWidth: 160},
			},
			ArchiveFrames: true,
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:              rmqURL,
		Queue:            jobQueue,
		RoutingKey:       jobRoutingKey,
		Exchange:         exchange,
		DLQ:              dlqQueue,
		StatusQueue:      statusQueue,
		StatusRoutingKey: statusRouting,
		Prefetch:         1,
		WorkerCount:      1,
		BaseDelayMs:      100,
	}, uc.Execute, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(consumerCtx)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		consumer.Close()
	})

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)
	return env
}
