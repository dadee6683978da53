package metrics

// Result codes reported on CompressionRequestsTotal.
var compressionCodes = []string{
	"ok",
	"validation_error",
	"upload_too_large",
	"storage_unavailable",
	"transcode_error",
	"transcode_timeout",
	"client_gone",
}

// Transcoder job statuses reported on TranscoderJobsTotal.
var transcoderStatuses = []string{"success", "failed", "timeout", "canceled"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, code := range compressionCodes {
		CompressionRequestsTotal.WithLabelValues(code)
	}

	for _, status := range transcoderStatuses {
		TranscoderJobsTotal.WithLabelValues(status)
	}
}
