package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"audio-compressor/internal/logging"
	"audio-compressor/internal/metrics"
	"audio-compressor/internal/scratch"
	"audio-compressor/internal/streaming"
	"audio-compressor/internal/transcoder"
)

// multipartMemory is how much of the form is kept in memory before the
// multipart reader spills to temporary files.
const multipartMemory = 32 << 20

const fallbackBaseName = "audio"

type requestState string

const (
	stateReceived    requestState = "received"
	stateValidated   requestState = "validated"
	stateStored      requestState = "stored"
	stateTranscoding requestState = "transcoding"
	stateSucceeded   requestState = "succeeded"
	stateFailed      requestState = "failed"
	stateCleanedUp   requestState = "cleaned_up"
)

// compressRequest tracks one POST /compress through its states.
type compressRequest struct {
	id       string
	filename string
	state    requestState
	paths    []string
}

func (c *compressRequest) advance(state requestState) {
	c.state = state
	logging.Debug("compress %s: %s", c.id, state)
}

// Compress accepts a multipart upload in the "audio" field, transcodes it to
// the speech profile and streams the MP3 back. The uploaded file and the
// transcoded output are released on every path.
func (h *Handlers) Compress(w http.ResponseWriter, r *http.Request) {
	req := &compressRequest{id: chimw.GetReqID(r.Context())}
	if req.id == "" {
		req.id = uuid.NewString()
	}
	req.advance(stateReceived)

	code := h.compress(w, r, req)
	metrics.CompressionRequestsTotal.WithLabelValues(code).Inc()
}

func (h *Handlers) compress(w http.ResponseWriter, r *http.Request, req *compressRequest) string {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile(uploadField)
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logging.Warn("compress %s: failed to remove multipart temp files: %v", req.id, err)
			}
		}()
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if !errors.As(err, &maxBytesErr) {
			err = fmt.Errorf("%w: %w", ErrNoAudioFile, err)
		}
		return h.fail(w, req, err, "")
	}
	defer file.Close()

	req.filename = header.Filename
	req.advance(stateValidated)

	defer h.cleanup(req)

	upload, err := h.store.SaveUpload(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return h.fail(w, req, err, "")
	}
	req.paths = append(req.paths, upload.Path)
	req.advance(stateStored)

	outputPath, err := h.store.AllocateOutput()
	if err != nil {
		return h.fail(w, req, err, upload.Path)
	}
	req.paths = append(req.paths, outputPath)

	req.advance(stateTranscoding)
	_, err = h.transcoder.Transcode(r.Context(), transcoder.Job{
		ID:         req.id,
		InputPath:  upload.Path,
		OutputPath: outputPath,
		Profile:    transcoder.SpeechProfile,
	})
	if err != nil {
		return h.fail(w, req, err, upload.Path)
	}

	size, err := h.store.Size(outputPath)
	if err != nil {
		return h.fail(w, req, err, upload.Path)
	}

	out, err := os.Open(outputPath)
	if err != nil {
		return h.fail(w, req, fmt.Errorf("%w: opening output: %w", scratch.ErrStorageUnavailable, err), upload.Path)
	}
	defer out.Close()

	req.advance(stateSucceeded)
	report := NewCompressionReport(req.filename, upload.Size, size)
	report.log(req.id)
	report.observe()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", contentDisposition(req.filename))
	w.Header().Set("Cache-Control", "no-store")

	if _, err := streaming.ServeContent(r.Context(), w, out, size, h.streamConfig); err != nil {
		// Headers are gone; all that is left is to note it.
		logging.Warn("compress %s: streaming %s failed: %v", req.id, req.filename, err)
	}
	return codeOK
}

func (h *Handlers) fail(w http.ResponseWriter, req *compressRequest, err error, scratchPath string) string {
	req.advance(stateFailed)
	code := writeError(w, err, scratchPath, req.filename)

	if code == CodeValidation {
		logging.Debug("compress %s: rejected: %v", req.id, err)
	} else {
		logging.L().Error().
			Err(err).
			Str("request_id", req.id).
			Str("filename", req.filename).
			Str("code", code).
			Msg("Compression failed")
	}
	return code
}

// cleanup releases every scratch file the request reserved. Errors are
// logged and never change the response that was already chosen.
func (h *Handlers) cleanup(req *compressRequest) {
	for _, path := range req.paths {
		if err := h.store.Release(path); err != nil {
			logging.Warn("compress %s: failed to release %s: %v", req.id, path, err)
		}
	}
	req.advance(stateCleanedUp)
}

// outputFilename replaces the extension of the uploaded name with .mp3.
func outputFilename(uploaded string) string {
	base := filepath.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = fallbackBaseName
	}
	return base + scratch.OutputExt
}

func contentDisposition(uploaded string) string {
	name := outputFilename(uploaded)
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": fallbackBaseName + scratch.OutputExt})
}
