package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_gif_jobs_processed_total",
		Help: "Total number of gif jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_gif_job_processing_duration_seconds",
		Help:    "Duration of gif rendering pipeline stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_gif_frames_decoded_total",
		Help: "Total number of video frames fed to the sampler",
	})

	SamplesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_gif_samples_captured_total",
		Help: "Total number of frames kept as gif samples",
	})

	GifSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fiapx_gif_size_bytes",
		Help:    "Size of rendered gifs",
		Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_gif_active_workers",
		Help: "Number of currently active workers rendering gifs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_gif_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
