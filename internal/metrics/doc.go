// Package metrics provides Prometheus instrumentation for the audio compressor.
//
// All metrics are prefixed with "audio_compressor_" to avoid naming collisions
// with other applications. They are registered on the default registry via
// promauto and exposed by promhttp on the metrics server.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Compression Metrics
//
//   - CompressionRequestsTotal: Counter of /compress outcomes by error code ("ok" on success)
//   - CompressionInputBytes / CompressionOutputBytes: Histograms of file sizes
//   - CompressionReductionPercent: Histogram of the size reduction achieved
//
// ## Transcoder Metrics
//
//   - TranscoderJobsTotal: Counter of ffmpeg jobs by status (success/failed/timeout/canceled)
//   - TranscoderJobDuration: Histogram of ffmpeg wall time
//   - TranscoderJobsInProgress: Gauge of running ffmpeg processes
//   - TranscoderSlotWaitDuration: Histogram of time spent waiting for a free slot
//
// ## Scratch Metrics
//
//   - ScratchFilesActive: Gauge of files currently owned by in-flight requests
//   - ScratchReleaseErrors: Counter of failed deletions
//   - ScratchStaleRetries: Counter of ESTALE retries on the scratch mount
//   - ScratchDirFiles / ScratchDirBytes: Gauges refreshed by the Collector
//
// ## Application Info
//
//   - AppInfo: Gauge carrying version, commit and Go version labels
package metrics
