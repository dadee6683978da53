// Package handlers provides the HTTP handlers of the audio compressor.
//
// It includes handlers for:
//   - POST /compress: upload, transcode and return a speech-profile MP3
//   - Health, liveness and readiness probes
//   - Build version and Prometheus metrics
//
// Handlers depend on the small FileStore and Transcoder interfaces so tests
// can run without ffmpeg or a real scratch directory.
package handlers
