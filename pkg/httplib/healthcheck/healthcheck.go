package healthcheck

import (
	"io"
	"net/http"
)

// Path is the endpoint answered by HealthCheck.
const Path = "/health"

// HealthCheck answers GET and HEAD /health. Ready decides between 200 and 503; a nil Ready
// always reports healthy.
type HealthCheck struct {
	Ready func() error
}

// Handler serves health requests itself and hands every other request to next.
func (hc HealthCheck) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsHealthCheckRequest(r) {
			next.ServeHTTP(w, r)
			return
		}
		hc.ServeHTTP(w, r)
	})
}

func (hc HealthCheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, "ok"
	if hc.Ready != nil {
		if err := hc.Ready(); err != nil {
			status, body = http.StatusServiceUnavailable, err.Error()
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body+"\n")
}

// IsHealthCheckRequest reports whether r targets the health endpoint.
func IsHealthCheckRequest(r *http.Request) bool {
	return (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == Path
}
