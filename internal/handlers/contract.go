package handlers

import (
	"context"
	"io"

	"audio-compressor/internal/scratch"
	"audio-compressor/internal/transcoder"
)

// FileStore reserves and releases the scratch files of a request.
// It is satisfied by *scratch.Store.
type FileStore interface {
	SaveUpload(r io.Reader, filename, contentType string) (*scratch.Upload, error)
	AllocateOutput() (string, error)
	Size(path string) (int64, error)
	Release(path string) error
	CheckWritable() error
}

// Transcoder runs one transcode job to completion.
// It is satisfied by *transcoder.Transcoder.
type Transcoder interface {
	Transcode(ctx context.Context, job transcoder.Job) (transcoder.Result, error)
	Ready() error
}
