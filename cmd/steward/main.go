package main

import (
	"log"

	"github.com/steward-lb/steward/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ steward failed to start: %v", err)
	}
}
