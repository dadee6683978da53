// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from the environment by [ReadConfig] using cleanenv,
// after an optional .env file (path overridable with ENV_FILE) has been loaded
// with godotenv. Values already present in the environment take precedence
// over the file. The decoded [Config] is checked with validator tags.
//
//   - PORT: HTTP server port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - SERVICE_NAME: Name reported by /health (default: ffmpeg-audio-compressor)
//   - SCRATCH_DIR: Directory for transient files (default: /tmp/audio-compressor)
//   - TRANSCODE_TIMEOUT: Per-request ffmpeg limit as Go duration (default: 60s)
//   - MAX_UPLOAD_BYTES: Largest accepted request body (default: 200 MiB)
//   - MAX_CONCURRENT_TRANSCODES: Concurrent ffmpeg processes, 0 = one per CPU (default: 0)
//   - FFMPEG_PATH / FFPROBE_PATH: Binaries to run (default: looked up in PATH)
//   - VERIFY_OUTPUT: Probe outputs and reject profile mismatches (default: false)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - SHUTDOWN_TIMEOUT: Grace period for in-flight requests (default: 30s)
//
// [LoadConfig] additionally prints the banner and system information and
// makes sure the scratch directory exists and is writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogTranscoderInit(config.FFmpegPath, trans.Slots(), config.TranscodeTimeout)
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
