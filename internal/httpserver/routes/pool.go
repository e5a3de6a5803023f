package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/steward-lb/steward/internal/httpserver/deps"
	"github.com/steward-lb/steward/internal/httpserver/handlers"
	"github.com/steward-lb/steward/internal/httpserver/mw"
)

func init() { Register(registerPool) }

func registerPool(r chi.Router, d deps.Deps) {
	guarded := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	guarded.Get("/pool", handlers.Pool(d))
	guarded.Get("/events", handlers.Events(d))
	guarded.Get("/infra", handlers.Infra(d))
}
