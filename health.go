package gtfsrtarrivals

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type healthResponse struct {
	Status                  string `json:"status"`
	LatestGTFSRealtimeEpoch int64  `json:"latest_gtfsrt_epoch"`
	LastSuccessEpoch        int64  `json:"last_success_epoch"`
	LastErrorEpoch          int64  `json:"last_error_epoch,omitempty"`
	LastError               string `json:"last_error,omitempty"`
	LastErrorKind           string `json:"last_error_kind,omitempty"`
	LastMatches             int    `json:"last_matches"`
	ConsecutiveFailures     int    `json:"consecutive_failures"`
}

// Health tracks the outcome of recent cycles for the health endpoint
type Health struct {
	mu   sync.RWMutex
	resp healthResponse
}

// NewHealth returns a tracker in the "starting" state
func NewHealth() *Health {
	return &Health{resp: healthResponse{Status: "starting"}}
}

func (h *Health) recordSuccess(now time.Time, feedTS int64, matches int) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resp.Status = "ok"
	h.resp.LastSuccessEpoch = now.Unix()
	h.resp.LastMatches = matches
	h.resp.ConsecutiveFailures = 0
	if feedTS > h.resp.LatestGTFSRealtimeEpoch {
		h.resp.LatestGTFSRealtimeEpoch = feedTS
	}
}

func (h *Health) recordFailure(err error, now time.Time) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resp.Status = "degraded"
	h.resp.LastErrorEpoch = now.Unix()
	h.resp.LastError = err.Error()
	h.resp.LastErrorKind = ErrorKind(err)
	h.resp.ConsecutiveFailures++
}

// snapshot of a nil tracker reads as "starting"
func (h *Health) snapshot() healthResponse {
	if h == nil {
		return healthResponse{Status: "starting"}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.resp
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.snapshot()
	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "degraded" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
