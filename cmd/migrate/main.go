package main

import (
	"context"
	"log"

	"github.com/Juicern/local-asr/internal/config"
	"github.com/Juicern/local-asr/internal/storage"
)

func main() {
	cfg := config.Load()

	if cfg.Database.Driver == storage.DriverMemory {
		log.Println("Memory history store selected; nothing to migrate.")
		return
	}

	db, err := storage.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(context.Background(), db, cfg.Database.Driver); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	log.Println("Migrations applied successfully.")
}
