package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Timeout cancels the request context and answers 503 when a handler takes
// longer than the given duration. The handler keeps running on its own
// goroutine; once the deadline response is sent its writes are discarded.
// Panics from the handler goroutine are re-raised on the request goroutine so
// the recovery middleware can handle them.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan any, 1)

			go func() {
				defer func() {
					done <- recover()
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case p := <-done:
				if p != nil {
					panic(p)
				}
			case <-ctx.Done():
				dw.timeout(d)
			}
		})
	}
}

// deadlineWriter guards against the handler and the timeout branch both
// writing a response.
type deadlineWriter struct {
	http.ResponseWriter
	mu    sync.Mutex
	wrote bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.wrote {
		return
	}
	dw.wrote = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if !dw.wrote {
		dw.wrote = true
		dw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return dw.ResponseWriter.Write(b)
}

func (dw *deadlineWriter) timeout(d time.Duration) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.wrote {
		return
	}
	dw.wrote = true
	h := dw.ResponseWriter.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Retry-After", strconv.Itoa(int(d.Seconds())))
	dw.ResponseWriter.WriteHeader(http.StatusServiceUnavailable)
	dw.ResponseWriter.Write([]byte("request timed out"))
}
