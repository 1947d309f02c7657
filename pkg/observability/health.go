package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem asyncgitd's diagnostics server
// depends on (the repository handle, the worker pool) is ready to serve
// traffic. A non-nil error fails the readiness check.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves liveness checks at /healthz: the process is up, full
// stop. It always returns HTTP 200.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		writeHealthJSON(rw, healthStatusOK)
	})
}

// ReadyHandler serves readiness checks at /readyz, running every check and
// returning HTTP 503 on the first failure. With no checks it behaves like
// HealthHandler.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		rw.Header().Set("Content-Type", "application/json")

		for _, check := range checks {
			if err := check(hr.Context()); err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				writeHealthJSON(rw, healthStatusUnavailable)

				return
			}
		}

		rw.WriteHeader(http.StatusOK)
		writeHealthJSON(rw, healthStatusOK)
	})
}

func writeHealthJSON(w io.Writer, status string) {
	data, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return
	}

	writeOrDiscard(w, data)
}

func writeOrDiscard(w io.Writer, data []byte) {
	_, _ = w.Write(data)
}
