package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"audio-compressor/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a single write exceeded the configured
	// deadline, typically because the client is reading too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the body
	// was fully sent.
	ErrClientGone = errors.New("client disconnected")

	// ErrShortStream indicates the source ended before the announced
	// Content-Length was reached.
	ErrShortStream = errors.New("stream shorter than content length")
)

// Config configures the deadline writer.
type Config struct {
	// WriteTimeout bounds each chunk write. Zero disables the deadline.
	WriteTimeout time.Duration
	// ChunkSize splits large writes so deadlines and cancellation are
	// checked often (0 = write as received).
	ChunkSize int
	// OnProgress is called after every MiB written. May be nil.
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// DeadlineWriter wraps an http.ResponseWriter, refreshing the connection
// write deadline before every chunk and stopping as soon as ctx is done.
type DeadlineWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	config Config

	mu           sync.Mutex
	startTime    time.Time
	bytesWritten int64
	deadlineOK   bool
}

// NewDeadlineWriter creates a new deadline-protected writer
func NewDeadlineWriter(ctx context.Context, w http.ResponseWriter, config Config) *DeadlineWriter {
	return &DeadlineWriter{
		w:          w,
		rc:         http.NewResponseController(w),
		ctx:        ctx,
		config:     config,
		startTime:  time.Now(),
		deadlineOK: config.WriteTimeout > 0,
	}
}

// Write implements io.Writer.
func (dw *DeadlineWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := dw.ctx.Err(); err != nil {
			return total, ErrClientGone
		}

		chunk := len(p)
		if dw.config.ChunkSize > 0 && chunk > dw.config.ChunkSize {
			chunk = dw.config.ChunkSize
		}

		n, err := dw.writeChunk(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]
	}
	return total, nil
}

func (dw *DeadlineWriter) writeChunk(p []byte) (int, error) {
	if dw.deadlineOK {
		if err := dw.rc.SetWriteDeadline(time.Now().Add(dw.config.WriteTimeout)); err != nil {
			// Recorders and some wrappers cannot set deadlines; fall back to
			// plain writes for the rest of the stream.
			dw.deadlineOK = false
		}
	}

	n, err := dw.w.Write(p)

	dw.mu.Lock()
	before := dw.bytesWritten
	dw.bytesWritten += int64(n)
	after := dw.bytesWritten
	dw.mu.Unlock()

	if dw.config.OnProgress != nil && after/(1024*1024) > before/(1024*1024) {
		dw.config.OnProgress(after, time.Since(dw.startTime))
	}

	if err != nil {
		return n, dw.classify(err)
	}
	return n, nil
}

func (dw *DeadlineWriter) classify(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrWriteTimeout, err)
	case dw.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	default:
		return err
	}
}

// Stats returns streaming statistics
func (dw *DeadlineWriter) Stats() (bytesWritten int64, duration time.Duration) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.bytesWritten, time.Since(dw.startTime)
}

// ServeContent writes a 200 response with a fixed Content-Length and copies
// size bytes from r. Content-Type and other headers must be set by the caller.
func ServeContent(ctx context.Context, w http.ResponseWriter, r io.Reader, size int64, config Config) (int64, error) {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	dw := NewDeadlineWriter(ctx, w, config)
	n, err := io.Copy(dw, io.LimitReader(r, size))

	bytesWritten, duration := dw.Stats()
	logging.Debug("Stream completed: %d bytes in %v", bytesWritten, duration)

	if err != nil {
		return n, err
	}
	if n < size {
		return n, fmt.Errorf("%w: sent %d of %d bytes", ErrShortStream, n, size)
	}
	return n, nil
}
