package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/steward-lb/steward/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Total   *int   `json:"total,omitempty"`
	Healthy *int   `json:"healthy,omitempty"`
	Rules   *int   `json:"rules,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	ServingMode string                     `json:"serving_mode"`
	Components  map[string]componentStatus `json:"components"`
}

// Infra summarizes the health of the control plane itself: pool capacity,
// routing table, and persistence.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		total, healthy := d.Roster.Counts()
		rules := len(d.Director.Table().Rules)

		components := map[string]componentStatus{
			"pool": {
				OK:      healthy > 0,
				Total:   &total,
				Healthy: &healthy,
			},
			"director": {
				OK:    rules > 0,
				Rules: &rules,
			},
			"redis": checkRedis(d),
		}

		response := infraResponse{
			ServingMode: determineServingMode(components),
			Components:  components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineServingMode(components map[string]componentStatus) string {
	if pool, exists := components["pool"]; exists && !pool.OK {
		return "critical" // no healthy members = every routed request is a 503
	}
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "degraded" // serving fine, but state won't survive a restart
	}
	return "nominal"
}

func checkRedis(d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "state-not-persisted",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "state-not-persisted",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "state-persisted",
		Error:  "none",
	}
}
