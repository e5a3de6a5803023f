package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/steward-lb/steward/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Healthy int  `json:"healthy_members"`
}

// Readyz reports ready once at least one pool member can take traffic.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, healthy := d.Roster.Counts()

		w.Header().Set("Content-Type", "application/json")
		if healthy == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:   healthy > 0,
			Healthy: healthy,
		})
	}
}
