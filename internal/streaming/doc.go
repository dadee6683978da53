/*
Package streaming sends file bodies to HTTP clients with write deadlines.

A slow or vanished client must not pin a request (and the scratch files it
owns) forever. DeadlineWriter wraps an http.ResponseWriter and, before every
chunk, pushes the connection write deadline forward through
http.ResponseController. A client that stops reading surfaces as
ErrWriteTimeout; a canceled request context surfaces as ErrClientGone.

# Usage

	f, _ := os.Open(outputPath)
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	n, err := streaming.ServeContent(r.Context(), w, f, size, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		// nothing left to tell the client
	}

ServeContent announces Content-Length up front, so responses are never
chunked, and reports ErrShortStream if the source ends early.

Writers that do not support deadlines, such as httptest.ResponseRecorder,
are written to without one.
*/
package streaming
