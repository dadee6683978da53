package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-compressor/internal/handlers"
	"audio-compressor/internal/scratch"
	"audio-compressor/internal/startup"
	"audio-compressor/internal/transcoder"
)

func testSetup(t *testing.T) (*startup.Config, http.Handler) {
	t.Helper()

	config := &startup.Config{
		ServiceName:     "test-compressor",
		MaxUploadBytes:  1 << 20,
		MetricsEnabled:  true,
		LogHealthChecks: false,
	}

	store, err := scratch.New(t.TempDir())
	require.NoError(t, err)

	trans := transcoder.New(transcoder.Config{FFmpegPath: "/nonexistent/ffmpeg"})
	h := handlers.New(store, trans, config)

	return config, buildHandler(setupRouter(h), config)
}

func TestSetupRouterRoutes(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	h := handlers.New(store, transcoder.New(transcoder.Config{}), &startup.Config{ServiceName: "x"})

	routes, err := startup.GetRoutes(setupRouter(h))
	require.NoError(t, err)

	got := make(map[string]bool)
	for _, r := range routes {
		got[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /compress",
		"GET /health",
		"GET /healthz",
		"GET /livez",
		"HEAD /livez",
		"GET /readyz",
		"GET /version",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestHandlerChain(t *testing.T) {
	_, handler := testSetup(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, `{"status":"ok","service":"test-compressor"}`},
		{"compress without file", http.MethodPost, "/compress", http.StatusBadRequest, `{"error":"No audio file provided","code":"validation_error"}`},
		{"compress wrong method", http.MethodGet, "/compress", http.StatusMethodNotAllowed, ""},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound, ""},
		{"readiness without ffmpeg", http.MethodGet, "/readyz", http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestShutdownDrainsInFlightCompression(t *testing.T) {
	ffmpeg := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte("#!/bin/bash\nexec sleep 30\n"), 0o755))

	config := &startup.Config{
		ServiceName:     "test-compressor",
		MaxUploadBytes:  1 << 20,
		ShutdownTimeout: 300 * time.Millisecond,
	}
	scratchDir := t.TempDir()
	store, err := scratch.New(scratchDir)
	require.NoError(t, err)
	trans := transcoder.New(transcoder.Config{FFmpegPath: ffmpeg, Timeout: 30 * time.Second})
	h := handlers.New(store, trans, config)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: buildHandler(setupRouter(h), config), ReadHeaderTimeout: 5 * time.Second}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "meeting.wav")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("RIFF"), 1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	type outcome struct {
		status int
		code   string
		err    error
	}
	respc := make(chan outcome, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/compress", mw.FormDataContentType(), &body)
		if err != nil {
			respc <- outcome{err: err}
			return
		}
		defer resp.Body.Close()
		var er handlers.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		respc <- outcome{status: resp.StatusCode, code: er.Code}
	}()

	require.Eventually(t, func() bool { return trans.Active() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, store.Active())

	a := &app{
		srv:             srv,
		handlers:        h,
		trans:           trans,
		store:           store,
		shutdownTimeout: config.ShutdownTimeout,
	}
	start := time.Now()
	a.shutdown("test")
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.ErrorIs(t, <-served, http.ErrServerClosed)
	assert.Equal(t, 0, trans.Active(), "ffmpeg left running")
	assert.Equal(t, 0, store.Active(), "scratch files still held")

	entries, err := os.ReadDir(scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory not purged")

	select {
	case got := <-respc:
		require.NoError(t, got.err)
		assert.Equal(t, http.StatusInternalServerError, got.status)
		assert.Equal(t, handlers.CodeTranscode, got.code)
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight request never answered")
	}

	rr := httptest.NewRecorder()
	h.ReadinessCheck(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestWaitIdle(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	assert.True(t, waitIdle(store, 0))

	path, err := store.AllocateOutput()
	require.NoError(t, err)
	assert.False(t, waitIdle(store, 50*time.Millisecond))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = store.Release(path)
	}()
	assert.True(t, waitIdle(store, 5*time.Second))
}
