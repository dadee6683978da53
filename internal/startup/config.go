package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"audio-compressor/internal/logging"
)

// Config holds all application configuration
type Config struct {
	Port           string `env:"PORT" env-default:"3000" env-description:"HTTP server port" validate:"required,numeric"`
	MetricsPort    string `env:"METRICS_PORT" env-default:"9090" env-description:"Prometheus metrics server port" validate:"required,numeric"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" env-default:"true" env-description:"Serve /metrics on METRICS_PORT"`
	ServiceName    string `env:"SERVICE_NAME" env-default:"ffmpeg-audio-compressor" env-description:"Name reported by /health" validate:"required"`

	ScratchDir              string        `env:"SCRATCH_DIR" env-default:"/tmp/audio-compressor" env-description:"Directory for transient upload and output files" validate:"required"`
	TranscodeTimeout        time.Duration `env:"TRANSCODE_TIMEOUT" env-default:"60s" env-description:"Maximum ffmpeg run time per request" validate:"gt=0"`
	MaxUploadBytes          int64         `env:"MAX_UPLOAD_BYTES" env-default:"209715200" env-description:"Largest accepted request body in bytes" validate:"gt=0"`
	MaxConcurrentTranscodes int           `env:"MAX_CONCURRENT_TRANSCODES" env-default:"0" env-description:"Concurrent ffmpeg processes (0 = one per CPU)" validate:"gte=0"`
	FFmpegPath              string        `env:"FFMPEG_PATH" env-default:"ffmpeg" env-description:"ffmpeg binary" validate:"required"`
	FFprobePath             string        `env:"FFPROBE_PATH" env-default:"ffprobe" env-description:"ffprobe binary" validate:"required"`
	VerifyOutput            bool          `env:"VERIFY_OUTPUT" env-default:"false" env-description:"Probe every output and reject profile mismatches"`

	MemoryLimit int64   `env:"MEMORY_LIMIT" env-default:"0" env-description:"Container memory limit in bytes, used to derive GOMEMLIMIT (0 = unset)" validate:"gte=0"`
	MemoryRatio float64 `env:"MEMORY_RATIO" env-default:"0.5" env-description:"Share of MEMORY_LIMIT given to the Go heap; the rest is left for ffmpeg" validate:"gt=0,lte=1"`

	LogHealthChecks bool          `env:"LOG_HEALTH_CHECKS" env-default:"true" env-description:"Include health probes in the access log"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"console" env-description:"console or json" validate:"oneof=console json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s" env-description:"Grace period for in-flight requests on shutdown" validate:"gt=0"`
}

// ErrPortConflict is returned when the application and metrics servers would
// bind the same port.
var ErrPortConflict = errors.New("PORT and METRICS_PORT must differ when metrics are enabled")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReadConfig reads configuration from an optional .env file and the
// environment, applies defaults and validates the result. It has no side
// effects beyond loading the .env file into the process environment.
func ReadConfig() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.MetricsEnabled && cfg.MetricsPort == cfg.Port {
		return nil, ErrPortConflict
	}

	return &cfg, nil
}

// loadDotEnv loads path into the environment if it exists. Variables already
// set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	logging.Debug("  Loaded environment from %s", path)
	return nil
}

// LoadConfig prints the startup banner, loads configuration and prepares the
// scratch directory.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logSection("CONFIGURATION")

	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("  SERVICE_NAME:              %s", cfg.ServiceName)
	logging.Info("  PORT:                      %s", cfg.Port)
	logging.Info("  METRICS_PORT:              %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:           %v", cfg.MetricsEnabled)
	logging.Info("  SCRATCH_DIR:               %s", cfg.ScratchDir)
	logging.Info("  TRANSCODE_TIMEOUT:         %v", cfg.TranscodeTimeout)
	logging.Info("  MAX_UPLOAD_BYTES:          %d (%s)", cfg.MaxUploadBytes, humanize.IBytes(uint64(cfg.MaxUploadBytes)))
	logging.Info("  MAX_CONCURRENT_TRANSCODES: %d", cfg.MaxConcurrentTranscodes)
	logging.Info("  FFMPEG_PATH:               %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:              %s", cfg.FFprobePath)
	logging.Info("  VERIFY_OUTPUT:             %v", cfg.VerifyOutput)
	if cfg.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:              %s (ratio %.2f)", humanize.IBytes(uint64(cfg.MemoryLimit)), cfg.MemoryRatio)
	}
	logging.Info("  LOG_HEALTH_CHECKS:         %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())
	logging.Info("  SHUTDOWN_TIMEOUT:          %v", cfg.ShutdownTimeout)

	logSection("DIRECTORY SETUP")

	cfg.ScratchDir, err = filepath.Abs(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	logging.Info("  Scratch directory (absolute): %s", cfg.ScratchDir)

	if err := ensureDirectory(cfg.ScratchDir, "scratch"); err != nil {
		return nil, fmt.Errorf("scratch directory error: %w", err)
	}

	logging.Debug("  Testing scratch directory write access...")
	if err := testWriteAccess(cfg.ScratchDir); err != nil {
		return nil, fmt.Errorf("scratch directory is not writable: %w", err)
	}
	logging.Info("  [OK] Scratch directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Output verification: %s", enabledString(cfg.VerifyOutput))
	logging.Info("    Metrics:             %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// Usage returns a description of every supported environment variable.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
