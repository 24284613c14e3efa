// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		path   = flag.String("path", "migrations/postgres", "Path to migration files")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := runMigrations(cfg, *action, *path); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func runMigrations(cfg *config.Config, action, path string) error {
	databaseURL := cfg.Database.Postgres.URL()

	switch action {
	case "up":
		log.Println("Running migrations...")
		if err := storage.RunMigrations(databaseURL, path); err != nil {
			return err
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back migration...")
		if err := storage.RollbackMigrations(databaseURL, path); err != nil {
			return err
		}
		log.Println("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, path)
		if err != nil {
			return err
		}
		log.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}
