package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"audio-compressor/internal/handlers"
	"audio-compressor/internal/logging"
	"audio-compressor/internal/memory"
	"audio-compressor/internal/metrics"
	"audio-compressor/internal/middleware"
	"audio-compressor/internal/scratch"
	"audio-compressor/internal/startup"
	"audio-compressor/internal/transcoder"
)

const (
	scratchStatsInterval = 30 * time.Second
	releaseGrace         = 5 * time.Second
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Leave room in the container for ffmpeg
	memory.ApplyLimit(config.MemoryLimit, config.MemoryRatio)

	// Initialize scratch store and remove files left by a previous crash
	store, err := scratch.New(config.ScratchDir)
	if err != nil {
		startup.LogFatal("Failed to initialize scratch store: %v", err)
	}
	purged, err := store.Purge()
	if err != nil {
		logging.Warn("Failed to purge scratch directory: %v", err)
	}
	startup.LogScratchInit(store.Dir(), purged)

	// Initialize transcoder
	trans := transcoder.New(transcoder.Config{
		FFmpegPath:    config.FFmpegPath,
		FFprobePath:   config.FFprobePath,
		Timeout:       config.TranscodeTimeout,
		MaxConcurrent: config.MaxConcurrentTranscodes,
		VerifyOutput:  config.VerifyOutput,
	})
	startup.LogTranscoderInit(config.FFmpegPath, trans.Slots(), trans.Timeout())

	// Metrics
	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
		collector = metrics.NewCollector(store, scratchStatsInterval)
		collector.Start()
	}

	// Initialize handlers
	h := handlers.New(store, trans, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		// Body size and transcode time are bounded per request instead.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	a := &app{
		srv:             srv,
		metricsSrv:      metricsSrv,
		handlers:        h,
		trans:           trans,
		store:           store,
		collector:       collector,
		shutdownTimeout: config.ShutdownTimeout,
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		a.shutdown(sig.String())
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for the
	// drain and cleanup steps before exiting.
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/compress", h.Compress).Methods("POST")

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	return r
}

// buildHandler wraps the router with the middleware chain. Request ids are
// assigned first so every later layer can log them.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = middleware.Recovery(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	handler = middleware.Logger(loggingConfig, config.ServiceName)(handler)
	handler = chimw.RealIP(handler)
	handler = chimw.RequestID(handler)
	return handler
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

// app holds the long-lived components torn down on shutdown.
type app struct {
	srv             *http.Server
	metricsSrv      *http.Server
	handlers        *handlers.Handlers
	trans           *transcoder.Transcoder
	store           *scratch.Store
	collector       *metrics.Collector
	shutdownTimeout time.Duration
}

// shutdown drains in-flight requests, stops any ffmpeg process still
// running, and purges the scratch directory once no request holds a file.
func (a *app) shutdown(reason string) {
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.handlers.SetDraining(true)

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := a.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping ffmpeg processes")
	a.trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	// Handlers whose ffmpeg was just killed still have to answer and
	// release their files.
	if !waitIdle(a.store, releaseGrace) {
		logging.Warn("%d scratch files still held after %v", a.store.Active(), releaseGrace)
	}

	startup.LogShutdownStep("Purging scratch directory")
	if n, err := a.store.Purge(); err != nil {
		logging.Warn("Scratch purge error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Scratch purged")
		logging.Debug("Removed %d scratch files", n)
	}

	if a.collector != nil {
		a.collector.Stop()
	}
	if a.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}

// waitIdle polls until the store tracks no live files or the grace period
// runs out.
func waitIdle(store *scratch.Store, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for store.Active() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
	return true
}
