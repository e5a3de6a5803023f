package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/steward-lb/steward/internal/httpserver/deps"
	"github.com/steward-lb/steward/internal/httpserver/handlers"
	"github.com/steward-lb/steward/internal/httpserver/mw"
)

func init() { Register(registerHealthz) }

func registerHealthz(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/healthz", handlers.Healthz(d))
}
