package handlers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audio-compressor/internal/logging"
)

// MetricsHandler serves the default registry for the metrics listener.
// OpenMetrics is offered to scrapers that ask for it.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		metricsHandler(prometheus.DefaultGatherer),
	)
}

// metricsHandler keeps serving whatever gathered cleanly when a collector
// fails; the failure goes to the service log.
func metricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:          scrapeErrorLog{},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

type scrapeErrorLog struct{}

func (scrapeErrorLog) Println(v ...interface{}) {
	logging.Error("metrics scrape: %s", fmt.Sprint(v...))
}
