// Package main provides the entry point for the audio compressor service.
//
// The service accepts an audio upload over HTTP, re-encodes it with ffmpeg
// into a small speech-oriented MP3 (mono, 16 kHz, 32 kbit/s) and returns the
// result in the same response. Nothing is kept after the response is sent.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads .env and environment variables, validates them
//  2. Scratch Store: Creates SCRATCH_DIR and purges files left by a crash
//  3. Transcoder: Sizes the ffmpeg slot pool and applies TRANSCODE_TIMEOUT
//  4. Metrics: Registers Prometheus metrics and starts the scratch collector
//  5. HTTP Server Setup: Configures routes and middleware and starts serving
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 3000):
//     - POST /compress with multipart field "audio"
//     - GET /health, /healthz, /livez, /readyz
//     - GET /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
//   - PORT: Main HTTP server port (default: 3000)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - SERVICE_NAME: Name reported by /health (default: ffmpeg-audio-compressor)
//   - SCRATCH_DIR: Directory for transient files (default: /tmp/audio-compressor)
//   - TRANSCODE_TIMEOUT: Maximum ffmpeg run time per request (default: 60s)
//   - MAX_UPLOAD_BYTES: Largest accepted request body (default: 200 MiB)
//   - MAX_CONCURRENT_TRANSCODES: ffmpeg processes at once (default: one per CPU)
//   - FFMPEG_PATH, FFPROBE_PATH: Binaries to run (default: from PATH)
//   - VERIFY_OUTPUT: Probe each output with ffprobe (default: false)
//   - LOG_LEVEL, LOG_FORMAT, LOG_HEALTH_CHECKS
//   - MEMORY_LIMIT, MEMORY_RATIO: Derive GOMEMLIMIT from the container limit
//   - SHUTDOWN_TIMEOUT: Grace period for in-flight requests (default: 30s)
//
// # Graceful Shutdown
//
//  1. Mark the service as draining so /readyz fails
//  2. Stop accepting new HTTP requests and wait for in-flight ones
//  3. Kill any ffmpeg processes still running
//  4. Purge the scratch directory
//  5. Stop the metrics collector and metrics server
//
// Build:
//
//	go build -o audio-compressor .
//
// # Related Packages
//
//   - [audio-compressor/internal/handlers]: HTTP request handlers
//   - [audio-compressor/internal/scratch]: Transient file store
//   - [audio-compressor/internal/transcoder]: ffmpeg invocation
//   - [audio-compressor/internal/middleware]: Logging, metrics and recovery
//   - [audio-compressor/internal/startup]: Configuration and initialization
package main
