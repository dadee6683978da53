package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"audio-compressor/internal/scratch"
	"audio-compressor/internal/transcoder"
)

// ErrNoAudioFile means the request did not carry a usable "audio" part.
var ErrNoAudioFile = errors.New("no audio file provided")

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation         = "validation_error"
	CodeUploadTooLarge     = "upload_too_large"
	CodeStorageUnavailable = "storage_unavailable"
	CodeTranscode          = "transcode_error"
	CodeTranscodeTimeout   = "transcode_timeout"
	CodeClientGone         = "client_gone"
	CodeInternal           = "internal_error"

	codeOK = "ok"
)

const (
	msgNoAudioFile       = "No audio file provided"
	msgUploadTooLarge    = "Audio file too large"
	msgCompressionFailed = "Compression failed"
)

// ErrorResponse is the JSON body of every non-200 response from /compress.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// classifyError maps a failure from any stage of a compress request to its
// status code and body. scratchPath and filename let transcode details name
// the uploaded file instead of the scratch path.
func classifyError(err error, scratchPath, filename string) (int, ErrorResponse) {
	var maxBytesErr *http.MaxBytesError
	var jobErr *transcoder.JobError

	switch {
	case errors.Is(err, ErrNoAudioFile):
		return http.StatusBadRequest, ErrorResponse{Error: msgNoAudioFile, Code: CodeValidation}

	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   msgUploadTooLarge,
			Code:    CodeUploadTooLarge,
			Details: err.Error(),
		}

	case errors.Is(err, scratch.ErrUploadRead) && !errors.Is(err, context.Canceled):
		return http.StatusBadRequest, ErrorResponse{
			Error:   msgNoAudioFile,
			Code:    CodeValidation,
			Details: "upload was cut off before the file ended",
		}

	case errors.Is(err, scratch.ErrStorageUnavailable):
		return http.StatusInternalServerError, compressionFailed(CodeStorageUnavailable, err.Error())

	case errors.Is(err, transcoder.ErrTranscodeTimeout):
		return http.StatusInternalServerError, compressionFailed(CodeTranscodeTimeout, jobDetails(err, scratchPath, filename))

	case errors.Is(err, transcoder.ErrTranscodeFailed):
		return http.StatusInternalServerError, compressionFailed(CodeTranscode, jobDetails(err, scratchPath, filename))

	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, compressionFailed(CodeClientGone, "request canceled by client")

	default:
		if errors.As(err, &jobErr) {
			return http.StatusInternalServerError, compressionFailed(CodeInternal, jobDetails(err, scratchPath, filename))
		}
		return http.StatusInternalServerError, compressionFailed(CodeInternal, err.Error())
	}
}

func compressionFailed(code, details string) ErrorResponse {
	return ErrorResponse{Error: msgCompressionFailed, Code: code, Details: details}
}

func jobDetails(err error, scratchPath, filename string) string {
	details := err.Error()
	var jobErr *transcoder.JobError
	if errors.As(err, &jobErr) {
		details = jobErr.Details()
	}
	if scratchPath != "" && filename != "" {
		details = strings.ReplaceAll(details, scratchPath, filename)
	}
	return details
}

// writeError writes the classified error body and returns its code.
func writeError(w http.ResponseWriter, err error, scratchPath, filename string) string {
	status, body := classifyError(err, scratchPath, filename)
	writeJSONResponse(w, status, body)
	return body.Code
}
