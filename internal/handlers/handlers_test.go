package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-compressor/internal/scratch"
	"audio-compressor/internal/startup"
	"audio-compressor/internal/transcoder"
)

// =============================================================================
// Test doubles
// =============================================================================

// fakeTranscoder writes the first quarter of the input to the output, or
// returns err when set.
type fakeTranscoder struct {
	err      error
	readyErr error

	mu   sync.Mutex
	jobs []transcoder.Job
}

func (f *fakeTranscoder) Transcode(_ context.Context, job transcoder.Job) (transcoder.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	if f.err != nil {
		return transcoder.Result{}, f.err
	}

	data, err := os.ReadFile(job.InputPath)
	if err != nil {
		return transcoder.Result{}, err
	}
	out := data[:len(data)/4]
	if err := os.WriteFile(job.OutputPath, out, 0o600); err != nil {
		return transcoder.Result{}, err
	}
	return transcoder.Result{OutputPath: job.OutputPath, OutputSize: int64(len(out))}, nil
}

func (f *fakeTranscoder) Ready() error {
	return f.readyErr
}

func (f *fakeTranscoder) recorded() []transcoder.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcoder.Job(nil), f.jobs...)
}

// failingStore wraps a real store and injects errors.
type failingStore struct {
	*scratch.Store
	saveErr     error
	releaseErr  error
	writableErr error
}

func (f *failingStore) SaveUpload(r io.Reader, filename, contentType string) (*scratch.Upload, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.Store.SaveUpload(r, filename, contentType)
}

func (f *failingStore) Release(path string) error {
	if err := f.Store.Release(path); err != nil {
		return err
	}
	return f.releaseErr
}

func (f *failingStore) CheckWritable() error {
	if f.writableErr != nil {
		return f.writableErr
	}
	return f.Store.CheckWritable()
}

// brokenPipeWriter accepts headers but fails every body write, like a
// client that hung up after the request was read.
type brokenPipeWriter struct {
	*httptest.ResponseRecorder
	attempts int
}

func (w *brokenPipeWriter) Write([]byte) (int, error) {
	w.attempts++
	return 0, errors.New("write tcp 127.0.0.1:8080->127.0.0.1:51234: write: broken pipe")
}

// cancelingWriter cancels the request context after the first body write.
type cancelingWriter struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
}

func (w *cancelingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseRecorder.Write(p)
	w.cancel()
	return n, err
}

// =============================================================================
// Helpers
// =============================================================================

func testConfig() *startup.Config {
	return &startup.Config{
		ServiceName:    "test-compressor",
		MaxUploadBytes: 10 << 20,
	}
}

func newStore(t *testing.T) *scratch.Store {
	t.Helper()
	store, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func newTestHandlers(t *testing.T, store FileStore, trans Transcoder) *Handlers {
	t.Helper()
	return New(store, trans, testConfig())
}

// uploadRequest builds a multipart POST /compress with data under field.
func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/compress", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "body: %s", rr.Body.String())
	return body
}

func audioPayload(n int) []byte {
	return bytes.Repeat([]byte("RIFFWAVEdata"), n/12+1)[:n]
}

// =============================================================================
// POST /compress
// =============================================================================

func TestCompressMissingFile(t *testing.T) {
	store := newStore(t)
	h := newTestHandlers(t, store, &fakeTranscoder{})

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{
			name: "wrong field name",
			req:  func() *http.Request { return uploadRequest(t, "file", "a.wav", []byte("data")) },
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/compress", strings.NewReader(`{"audio":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
		},
		{
			name: "empty body",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/compress", http.NoBody)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Compress(rr, tt.req())

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"No audio file provided","code":"validation_error"}`, rr.Body.String())
			assert.Empty(t, scratchEntries(t, store.Dir()))
		})
	}
}

func TestCompressSuccess(t *testing.T) {
	store := newStore(t)
	trans := &fakeTranscoder{}
	h := newTestHandlers(t, store, trans)

	payload := audioPayload(4000)
	rr := httptest.NewRecorder()
	h.Compress(rr, uploadRequest(t, "audio", "voice memo.m4a", payload))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "audio/mpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1000", rr.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="voice memo.mp3"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, payload[:1000], rr.Body.Bytes())

	jobs := trans.recorded()
	require.Len(t, jobs, 1)
	assert.Equal(t, transcoder.SpeechProfile, jobs[0].Profile)
	assert.Equal(t, store.Dir(), filepath.Dir(jobs[0].InputPath))
	assert.Equal(t, ".m4a", filepath.Ext(jobs[0].InputPath))
	assert.Equal(t, ".mp3", filepath.Ext(jobs[0].OutputPath))

	assert.Empty(t, scratchEntries(t, store.Dir()))
	assert.Zero(t, store.Active())
}

func TestCompressTranscodeErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         func(input string) error
		wantCode    string
		wantDetails string
	}{
		{
			name: "ffmpeg failure",
			err: func(input string) error {
				return &transcoder.JobError{
					Stage:  transcoder.StageRun,
					Reason: "ffmpeg exited with status 1",
					Stderr: "ffmpeg version mock\n" + input + ": Invalid data found when processing input\n",
					Kind:   transcoder.ErrTranscodeFailed,
				}
			},
			wantCode:    CodeTranscode,
			wantDetails: "ffmpeg exited with status 1: broken.wav: Invalid data found when processing input",
		},
		{
			name: "timeout",
			err: func(string) error {
				return &transcoder.JobError{
					Stage:  transcoder.StageRun,
					Reason: "ffmpeg did not finish within 60s",
					Kind:   transcoder.ErrTranscodeTimeout,
				}
			},
			wantCode:    CodeTranscodeTimeout,
			wantDetails: "ffmpeg did not finish within 60s",
		},
		{
			name: "client disconnected",
			err: func(string) error {
				return &transcoder.JobError{
					Stage:  transcoder.StageQueue,
					Reason: "request canceled",
					Kind:   context.Canceled,
				}
			},
			wantCode:    CodeClientGone,
			wantDetails: "request canceled by client",
		},
		{
			name:        "unexpected",
			err:         func(string) error { return errors.New("boom") },
			wantCode:    CodeInternal,
			wantDetails: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			// The scratch input path is only known once the job starts.
			trans := &lazyErrTranscoder{fakeTranscoder: &fakeTranscoder{}, build: tt.err}
			h := newTestHandlers(t, store, trans)

			rr := httptest.NewRecorder()
			h.Compress(rr, uploadRequest(t, "audio", "broken.wav", audioPayload(64)))

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, "Compression failed", body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
			assert.Empty(t, scratchEntries(t, store.Dir()))
		})
	}
}

type lazyErrTranscoder struct {
	*fakeTranscoder
	build func(input string) error
}

func (l *lazyErrTranscoder) Transcode(_ context.Context, job transcoder.Job) (transcoder.Result, error) {
	// Leave a partial output behind like a killed ffmpeg would.
	_ = os.WriteFile(job.OutputPath, []byte("partial"), 0o600)
	return transcoder.Result{}, l.build(job.InputPath)
}

func TestCompressStorageUnavailable(t *testing.T) {
	store := &failingStore{
		Store:   newStore(t),
		saveErr: fmt.Errorf("%w: disk full", scratch.ErrStorageUnavailable),
	}
	trans := &fakeTranscoder{}
	h := newTestHandlers(t, store, trans)

	rr := httptest.NewRecorder()
	h.Compress(rr, uploadRequest(t, "audio", "a.wav", audioPayload(64)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "Compression failed", body.Error)
	assert.Equal(t, CodeStorageUnavailable, body.Code)
	assert.Contains(t, body.Details, "disk full")
	assert.Empty(t, trans.recorded())
}

func TestCompressUploadReadError(t *testing.T) {
	store := newStore(t)
	fs := &failingStore{Store: store, saveErr: fmt.Errorf("%w: %w", scratch.ErrUploadRead, io.ErrUnexpectedEOF)}
	trans := &fakeTranscoder{}
	h := newTestHandlers(t, fs, trans)

	rr := httptest.NewRecorder()
	h.Compress(rr, uploadRequest(t, "audio", "a.wav", audioPayload(100)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "No audio file provided", body.Error)
	assert.NotEmpty(t, body.Details)
	assert.Empty(t, trans.recorded())
	assert.Empty(t, scratchEntries(t, store.Dir()))
}

func TestCompressUploadTooLarge(t *testing.T) {
	store := newStore(t)
	trans := &fakeTranscoder{}
	h := newTestHandlers(t, store, trans)
	h.maxUploadBytes = 1024

	rr := httptest.NewRecorder()
	h.Compress(rr, uploadRequest(t, "audio", "big.wav", audioPayload(8192)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, CodeUploadTooLarge, body.Code)
	assert.Empty(t, trans.recorded())
	assert.Empty(t, scratchEntries(t, store.Dir()))
}

func TestCompressReleaseErrorKeepsResponse(t *testing.T) {
	store := &failingStore{
		Store:      newStore(t),
		releaseErr: errors.New("permission denied"),
	}
	h := newTestHandlers(t, store, &fakeTranscoder{})

	rr := httptest.NewRecorder()
	h.Compress(rr, uploadRequest(t, "audio", "a.wav", audioPayload(400)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 100, rr.Body.Len())
}

func TestCompressStreamFailureStillCleansUp(t *testing.T) {
	store := newStore(t)
	h := newTestHandlers(t, store, &fakeTranscoder{})

	w := &brokenPipeWriter{ResponseRecorder: httptest.NewRecorder()}
	h.Compress(w, uploadRequest(t, "audio", "call.wav", audioPayload(4000)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, w.attempts, "stream should stop at the first failed write")
	assert.Empty(t, scratchEntries(t, store.Dir()))
	assert.Zero(t, store.Active())
}

func TestCompressClientCancelMidStream(t *testing.T) {
	store := newStore(t)
	h := newTestHandlers(t, store, &fakeTranscoder{})

	// 1 MiB in, 256 KiB out: several copy buffers.
	payload := audioPayload(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := uploadRequest(t, "audio", "call.wav", payload).WithContext(ctx)

	w := &cancelingWriter{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}
	h.Compress(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "262144", w.Header().Get("Content-Length"))
	assert.Greater(t, w.Body.Len(), 0)
	assert.Less(t, w.Body.Len(), 1<<18, "stream should stop once the client is gone")
	assert.Equal(t, payload[:w.Body.Len()], w.Body.Bytes())
	assert.Empty(t, scratchEntries(t, store.Dir()))
	assert.Zero(t, store.Active())
}

func TestCompressConcurrentRequestsUseDistinctPaths(t *testing.T) {
	const n = 16

	store := newStore(t)
	trans := &fakeTranscoder{}
	h := newTestHandlers(t, store, trans)

	var wg sync.WaitGroup
	codes := make([]int, n)
	bodies := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte('a' + i)}, 4096)
			rr := httptest.NewRecorder()
			h.Compress(rr, uploadRequest(t, "audio", "same-name.wav", payload))
			codes[i] = rr.Code
			bodies[i] = rr.Body.Bytes()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.Equal(t, bytes.Repeat([]byte{byte('a' + i)}, 1024), bodies[i], "request %d got another request's output", i)
	}

	seen := make(map[string]bool)
	for _, job := range trans.recorded() {
		assert.False(t, seen[job.InputPath], "duplicate input path %s", job.InputPath)
		assert.False(t, seen[job.OutputPath], "duplicate output path %s", job.OutputPath)
		seen[job.InputPath] = true
		seen[job.OutputPath] = true
	}
	assert.Len(t, seen, 2*n)
	assert.Empty(t, scratchEntries(t, store.Dir()))
}

// =============================================================================
// Error classification and naming
// =============================================================================

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no audio", fmt.Errorf("%w: %w", ErrNoAudioFile, http.ErrMissingFile), http.StatusBadRequest, CodeValidation},
		{"too large", fmt.Errorf("multipart: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge, CodeUploadTooLarge},
		{"storage", fmt.Errorf("%w: ro fs", scratch.ErrStorageUnavailable), http.StatusInternalServerError, CodeStorageUnavailable},
		{"truncated upload", fmt.Errorf("%w: %w", scratch.ErrUploadRead, io.ErrUnexpectedEOF), http.StatusBadRequest, CodeValidation},
		{"upload canceled", fmt.Errorf("%w: %w", scratch.ErrUploadRead, context.Canceled), http.StatusInternalServerError, CodeClientGone},
		{"failed", transcoder.ErrTranscodeFailed, http.StatusInternalServerError, CodeTranscode},
		{"timeout", transcoder.ErrTranscodeTimeout, http.StatusInternalServerError, CodeTranscodeTimeout},
		{"canceled", context.Canceled, http.StatusInternalServerError, CodeClientGone},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classifyError(tt.err, "", "")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			if status >= 500 {
				assert.Equal(t, "Compression failed", body.Error)
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		uploaded string
		want     string
	}{
		{"voice.m4a", `attachment; filename=voice.mp3`},
		{"archive.tar.gz", `attachment; filename=archive.tar.mp3`},
		{"no-extension", `attachment; filename=no-extension.mp3`},
		{`C:\Users\me\rec.wav`, `attachment; filename=rec.mp3`},
		{"", `attachment; filename=audio.mp3`},
		{".wav", `attachment; filename=audio.mp3`},
		{"interview 1.ogg", `attachment; filename="interview 1.mp3"`},
		{"grüße.wav", `attachment; filename*=utf-8''gr%C3%BC%C3%9Fe.mp3`},
	}

	for _, tt := range tests {
		t.Run(tt.uploaded, func(t *testing.T) {
			assert.Equal(t, tt.want, contentDisposition(tt.uploaded))
		})
	}
}
