package health

import (
	"encoding/json"
	"net/http"
)

type ReadinessReporter interface {
	Ready() bool
}

// ReadyFunc adapts a function to ReadinessReporter.
type ReadyFunc func() bool

func (f ReadyFunc) Ready() bool { return f() }

// Readiness reports 200 once the map surface has a usable projection and 503
// before that.
func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string `json:"status"`
		}
		ready := rr.Ready()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
