package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/steward-lb/steward/internal/httpserver/deps"
)

type memberResponse struct {
	ID                   string `json:"id"`
	Addr                 string `json:"addr"`
	State                string `json:"state"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	LastProbeAt          string `json:"last_probe_at,omitempty"`
	LastLatencyMs        int64  `json:"last_latency_ms,omitempty"`
	CreatedAt            string `json:"created_at"`
	TerminatedAt         string `json:"terminated_at,omitempty"`
	ReplacedBy           string `json:"replaced_by,omitempty"`
}

type poolResponse struct {
	Pool    string           `json:"pool"`
	Version uint64           `json:"version"`
	MinSize int              `json:"min_size"`
	MaxSize int              `json:"max_size"`
	Total   int              `json:"total"`
	Healthy int              `json:"healthy"`
	Members []memberResponse `json:"members"`
}

// Pool returns the current roster snapshot, terminated records included.
func Pool(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := d.Roster.Snapshot()
		total, healthy := 0, 0

		members := make([]memberResponse, 0, len(snapshot.Members))
		for _, m := range snapshot.Members {
			if m.Active() {
				total++
				if m.EligibleForTraffic() {
					healthy++
				}
			}

			mr := memberResponse{
				ID:                   m.ID,
				Addr:                 m.Addr,
				State:                string(m.State),
				ConsecutiveSuccesses: m.ConsecutiveSuccesses,
				ConsecutiveFailures:  m.ConsecutiveFailures,
				CreatedAt:            m.CreatedAt.Format(time.RFC3339),
			}
			if !m.LastProbeAt.IsZero() {
				mr.LastProbeAt = m.LastProbeAt.Format(time.RFC3339)
				mr.LastLatencyMs = m.LastLatency.Milliseconds()
			}
			if !m.TerminatedAt.IsZero() {
				mr.TerminatedAt = m.TerminatedAt.Format(time.RFC3339)
				mr.ReplacedBy = m.ReplacedBy
			}
			members = append(members, mr)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(poolResponse{
			Pool:    snapshot.Pool,
			Version: snapshot.Version,
			MinSize: d.MinSize,
			MaxSize: d.MaxSize,
			Total:   total,
			Healthy: healthy,
			Members: members,
		})
	}
}
