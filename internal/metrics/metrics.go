package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_compressor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Compression metrics
var (
	CompressionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_compressor_compression_requests_total",
			Help: "Total number of compression requests by result code",
		},
		[]string{"code"},
	)

	CompressionInputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_compression_input_bytes",
			Help:    "Size of uploaded audio files in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KiB .. 1GiB
		},
	)

	CompressionOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_compression_output_bytes",
			Help:    "Size of compressed MP3 files in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)

	CompressionReductionPercent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_compression_reduction_percent",
			Help:    "Size reduction achieved by compression, in percent",
			Buckets: []float64{0, 25, 50, 75, 85, 90, 95, 98, 99},
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_compressor_transcoder_jobs_total",
			Help: "Total number of transcoding jobs",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)

	TranscoderSlotWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_compressor_transcoder_slot_wait_seconds",
			Help:    "Time spent waiting for a free transcoding slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)

// Scratch directory metrics
var (
	ScratchFilesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_scratch_files_active",
			Help: "Number of scratch files owned by in-flight requests",
		},
	)

	ScratchReleaseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_compressor_scratch_release_errors_total",
			Help: "Total number of scratch files that could not be deleted",
		},
	)

	ScratchStaleRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_compressor_scratch_stale_retries_total",
			Help: "Total number of retries caused by stale file handles on the scratch mount",
		},
	)

	ScratchDirFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_scratch_dir_files",
			Help: "Number of files present in the scratch directory",
		},
	)

	ScratchDirBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_scratch_dir_bytes",
			Help: "Total size of files present in the scratch directory",
		},
	)

	ScratchOrphanFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_compressor_scratch_orphan_files",
			Help: "Scratch files present on disk that no in-flight request owns",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audio_compressor_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
