// Command gifclip renders short GIF clips from local video files, either one
// at a time or for every video dropped into a watched directory. It can also
// submit a job for a stored video to the gif worker queue.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/archive"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/config"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/gif"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/imaging"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/watcher"
	"github.com/fiapx/fiapx-gifclip-service/internal/usecase"
	"github.com/fiapx/fiapx-gifclip-service/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type options struct {
	in       string
	out      string
	frames   string
	watchDir string
	outDir   string

	enqueue string
	userID  string
	email   string

	duration    float64
	fps         int
	start       float64
	pauses      pauseList
	orientation string
	device      string
	mirror      bool
	preview     string
	maxWidth    int
	dither      bool
	logLevel    string

	limits sampler.Limits
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "gifclip:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	log, err := logger.New(opts.logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	req, err := opts.request()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.enqueue != "" {
		return enqueue(ctx, cfg, opts, stdout)
	}

	decoder := ffmpeg.NewDecoder(ffmpeg.NewProber(cfg.FFprobeTimeout), cfg.DecodeBufferFrames, log)
	c := &converter{
		renderer: usecase.NewClipRenderer(decoder, gif.NewEncoder(opts.dither), log),
		archiver: archive.NewFrameArchiver(),
		logger:   log,
	}

	if opts.watchDir != "" {
		outDir := opts.outDir
		if outDir == "" {
			outDir = opts.watchDir
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		w := watcher.New(watcher.Config{Dir: opts.watchDir, Settle: cfg.WatchSettle}, log)
		return w.Run(ctx, func(ctx context.Context, path string) error {
			out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".gif")
			return c.convert(ctx, req, path, out, "")
		})
	}

	out := opts.out
	if out == "" {
		out = strings.TrimSuffix(opts.in, filepath.Ext(opts.in)) + ".gif"
	}
	return c.convert(ctx, req, opts.in, out, opts.frames)
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	opts := &options{limits: cfg.Limits()}
	fs := flag.NewFlagSet("gifclip", flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "", "input video file")
	fs.StringVar(&opts.out, "out", "", "output gif (default: input name with .gif)")
	fs.StringVar(&opts.frames, "frames", "", "also write the sampled frames as a zip of PNGs")
	fs.StringVar(&opts.watchDir, "watch", cfg.WatchDir, "convert every video dropped into this directory")
	fs.StringVar(&opts.outDir, "out-dir", cfg.WatchOutDir, "output directory for -watch (default: the watched directory)")
	fs.StringVar(&opts.enqueue, "enqueue", "", "submit a job for this object key in the uploads bucket instead of rendering locally")
	fs.StringVar(&opts.userID, "user", "cli", "user id for -enqueue")
	fs.StringVar(&opts.email, "email", "", "failure notification address for -enqueue")
	fs.Float64Var(&opts.duration, "duration", cfg.GifMaxDuration, "clip length in seconds")
	fs.IntVar(&opts.fps, "fps", cfg.GifFPS, "samples per second")
	fs.Float64Var(&opts.start, "start", 0, "seconds into the video to start recording")
	fs.Var(&opts.pauses, "pause", "pause recording over START-END seconds (repeatable)")
	fs.StringVar(&opts.orientation, "orientation", cfg.GifOrientation, "portrait, portrait-upside-down, landscape-left or landscape-right")
	fs.StringVar(&opts.device, "device-orientation", "", "how the camera was held; overrides -orientation (portrait, portrait-upside-down, landscape-left, landscape-right, face-up, face-down)")
	fs.BoolVar(&opts.mirror, "mirror", cfg.GifMirror, "flip frames horizontally")
	fs.StringVar(&opts.preview, "preview", previewDefault(cfg), "crop to the aspect ratio of WIDTHxHEIGHT")
	fs.IntVar(&opts.maxWidth, "max-width", cfg.GifMaxWidth, "down-scale wider frames (0 keeps the source width)")
	fs.BoolVar(&opts.dither, "dither", cfg.GifDither, "Floyd-Steinberg dithering")
	fs.StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	modes := 0
	for _, set := range []bool{opts.in != "", opts.watchDir != "", opts.enqueue != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fs.Usage()
		return nil, errors.New("exactly one of -in, -watch or -enqueue is required")
	}
	return opts, nil
}

func previewDefault(cfg *config.Config) string {
	if cfg.GifPreviewWidth <= 0 || cfg.GifPreviewHeight <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", cfg.GifPreviewWidth, cfg.GifPreviewHeight)
}

func (o *options) request() (usecase.ClipRequest, error) {
	preview, err := parseSize(o.preview)
	if err != nil {
		return usecase.ClipRequest{}, err
	}
	orientation, err := o.videoOrientation()
	if err != nil {
		return usecase.ClipRequest{}, err
	}

	req := usecase.ClipRequest{
		Sampler: sampler.Config{MaxDuration: o.duration, FramesPerSecond: o.fps},
		Script:  entity.Script{StartAt: o.start, Pauses: o.pauses},
		Correction: imaging.CorrectorConfig{
			Preview:     preview,
			Orientation: orientation,
			Mirror:      o.mirror,
			MaxWidth:    o.maxWidth,
		},
	}
	if err := req.Sampler.ValidateWithin(o.limits); err != nil {
		return req, err
	}
	if err := req.Script.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// videoOrientation resolves -device-orientation when given and -orientation
// otherwise.
func (o *options) videoOrientation() (imaging.Orientation, error) {
	if o.device != "" {
		d, err := imaging.ParseDeviceOrientation(o.device)
		if err != nil {
			return imaging.OrientationPortrait, err
		}
		return imaging.VideoOrientationFor(d), nil
	}
	return imaging.ParseOrientation(o.orientation)
}

type converter struct {
	renderer *usecase.ClipRenderer
	archiver *archive.FrameArchiver
	logger   *zap.Logger
}

func (c *converter) convert(ctx context.Context, req usecase.ClipRequest, in, out, framesPath string) error {
	log := c.logger.With(zap.String("input", in), zap.String("output", out))

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	clip, err := c.renderer.Render(ctx, in, req, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	if framesPath != "" {
		if err := c.archiver.ArchiveFrames(ctx, clip.Frames, framesPath); err != nil {
			return fmt.Errorf("archive frames: %w", err)
		}
	}

	log.Info("clip written",
		zap.Int("frames", len(clip.Frames)),
		zap.Float64("duration_secs", clip.Duration.Seconds()),
		zap.Bool("partial", clip.Partial),
		zap.Int("decoded", clip.Decoded),
	)
	return nil
}

func enqueue(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer) error {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
	if err != nil {
		return err
	}
	defer pub.Close()

	msg := opts.jobMessage()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := rabbitmq.NewJobPublisher(pub, cfg.RabbitMQJobRoutingKey).PublishJob(ctx, body); err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg.JobID)
	return nil
}

// jobMessage builds the queue message for -enqueue. A device orientation is
// sent as such and left for the worker to map.
func (o *options) jobMessage() entity.GifJobMessage {
	preview, _ := parseSize(o.preview)
	mirror := o.mirror
	orientation := o.orientation
	if o.device != "" {
		orientation = ""
	}
	return entity.GifJobMessage{
		JobID:             uuid.New(),
		UserID:            o.userID,
		VideoKey:          o.enqueue,
		UserEmail:         o.email,
		MaxDuration:       o.duration,
		FramesPerSecond:   o.fps,
		StartAt:           o.start,
		Pauses:            o.pauses,
		PreviewWidth:      preview.Dx(),
		PreviewHeight:     preview.Dy(),
		Orientation:       orientation,
		DeviceOrientation: o.device,
		Mirror:            &mirror,
	}
}
