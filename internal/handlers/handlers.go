package handlers

import (
	"sync/atomic"

	"audio-compressor/internal/startup"
	"audio-compressor/internal/streaming"
)

// uploadField is the multipart field carrying the audio file.
const uploadField = "audio"

type Handlers struct {
	store          FileStore
	transcoder     Transcoder
	serviceName    string
	maxUploadBytes int64
	streamConfig   streaming.Config
	draining       atomic.Bool
}

func New(store FileStore, trans Transcoder, config *startup.Config) *Handlers {
	return &Handlers{
		store:          store,
		transcoder:     trans,
		serviceName:    config.ServiceName,
		maxUploadBytes: config.MaxUploadBytes,
		streamConfig:   streaming.DefaultConfig(),
	}
}

// SetDraining makes the readiness probe fail so load balancers stop sending
// new uploads while in-flight requests finish.
func (h *Handlers) SetDraining(draining bool) {
	h.draining.Store(draining)
}
