package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/steward-lb/steward/internal/httpserver/deps"
	"github.com/steward-lb/steward/internal/logger"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

type eventsResponse struct {
	Persistence bool                     `json:"persistence"`
	Events      []redisstore.HealthEvent `json:"events"`
}

// Events returns recent health transitions, newest first. With
// persistence disabled it returns an empty list rather than an error.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if d.Store == nil {
			_ = json.NewEncoder(w).Encode(eventsResponse{
				Persistence: false,
				Events:      []redisstore.HealthEvent{},
			})
			return
		}

		n := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}

		events, err := d.Store.RecentHealthEvents(r.Context(), n)
		if err != nil {
			d.Logger.Warn("failed to read health events", logger.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to read events"})
			return
		}

		_ = json.NewEncoder(w).Encode(eventsResponse{
			Persistence: true,
			Events:      events,
		})
	}
}
