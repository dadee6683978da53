package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"audio-compressor/internal/logging"
)

// Recovery turns a panic in next into a JSON 500 response. If the handler had
// already started the response, the connection is aborted instead.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := newResponseWriter(w)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.L().Error().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("path", sanitizeLogField(r.URL.Path)).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Panic recovered")

			if wrapped.wroteHeader {
				panic(http.ErrAbortHandler)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Internal server error",
				"code":  "internal_error",
			})
		}()

		next.ServeHTTP(wrapped, r)
	})
}
