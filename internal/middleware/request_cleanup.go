package middleware

import (
	"io"
	"net/http"
)

// MaxRequestBodyBytes covers the largest payload the API takes: a draft
// with its exercise list.
const MaxRequestBodyBytes = 1 << 20

// LimitAndDrainRequest caps the body the handlers may decode. Whatever the
// handler left unread is drained and the body closed once it returns.
func LimitAndDrainRequest(maxBodyBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			original := r.Body
			r.Body = http.MaxBytesReader(w, original, maxBodyBytes)
			next.ServeHTTP(w, r)

			_, _ = io.Copy(io.Discard, io.LimitReader(original, maxBodyBytes))
			_ = original.Close()
		})
	}
}
