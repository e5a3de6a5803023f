package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/steward-lb/steward/internal/httpserver/deps"
)

type outputResponse struct {
	DNSName string `json:"dns_name"`
}

// Output exposes the address clients use to reach the traffic director.
func Output(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(outputResponse{
			DNSName: d.DNSName,
		})
	}
}
