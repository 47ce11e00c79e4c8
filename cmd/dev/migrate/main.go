// Dev helper: applies all pending migrations and exits.
package main

import (
	"log"

	"installments/pkg/config"
	"installments/pkg/db"
)

func main() {
	cfg := config.Load()
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}
	if err := db.Migrate(cfg); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations applied")
}
