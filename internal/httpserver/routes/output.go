package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/steward-lb/steward/internal/httpserver/deps"
	"github.com/steward-lb/steward/internal/httpserver/handlers"
)

func init() { Register(registerOutput) }

func registerOutput(r chi.Router, d deps.Deps) {
	r.Get("/output", handlers.Output(d))
}
