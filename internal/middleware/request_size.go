package middleware

import (
	"net/http"
)

// RequestSizeLimit rejects bodies larger than maxBytes with 413.
//
// A Content-Length above the limit is rejected immediately. Otherwise the body is
// wrapped in http.MaxBytesReader, so the limit applies once a handler reads it.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
