package handlers

import (
	"math"

	"github.com/dustin/go-humanize"

	"audio-compressor/internal/logging"
	"audio-compressor/internal/metrics"
)

// CompressionReport summarizes one successful compression.
type CompressionReport struct {
	Filename         string  `json:"filename"`
	OriginalBytes    int64   `json:"originalBytes"`
	CompressedBytes  int64   `json:"compressedBytes"`
	ReductionPercent float64 `json:"reductionPercent"`
}

// NewCompressionReport computes the size reduction rounded to one decimal.
// An empty original reports 0 rather than dividing by zero.
func NewCompressionReport(filename string, originalBytes, compressedBytes int64) CompressionReport {
	report := CompressionReport{
		Filename:        filename,
		OriginalBytes:   originalBytes,
		CompressedBytes: compressedBytes,
	}
	if originalBytes > 0 {
		ratio := 1 - float64(compressedBytes)/float64(originalBytes)
		report.ReductionPercent = math.Round(ratio*1000) / 10
	}
	return report
}

func (r CompressionReport) log(requestID string) {
	logging.L().Info().
		Str("request_id", requestID).
		Str("filename", r.Filename).
		Int64("original_bytes", r.OriginalBytes).
		Int64("compressed_bytes", r.CompressedBytes).
		Float64("reduction_percent", r.ReductionPercent).
		Msgf("Compressed %s: %s -> %s (%.1f%% smaller)",
			r.Filename,
			humanize.IBytes(uint64(r.OriginalBytes)),
			humanize.IBytes(uint64(r.CompressedBytes)),
			r.ReductionPercent)
}

func (r CompressionReport) observe() {
	metrics.CompressionInputBytes.Observe(float64(r.OriginalBytes))
	metrics.CompressionOutputBytes.Observe(float64(r.CompressedBytes))
	metrics.CompressionReductionPercent.Observe(r.ReductionPercent)
}
