// migrate_gorm.go - Run this file to apply GORM migrations
// Usage: go run migrate_gorm.go

//go:build ignore

package main

import (
	"log"
	"sync"

	"github.com/sahilchouksey/course-platform-api/config"
	"github.com/sahilchouksey/course-platform-api/database"
	"gorm.io/gorm/schema"
)

func main() {
	log.Println("=== GORM Migration ===")

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}

	env, err := config.Get()
	if err != nil {
		log.Fatal("Failed to read configuration:", err)
	}

	store, err := database.StartGORM(env)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if err := store.HealthCheck(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("✅ All migrations completed successfully!")
	log.Println("Tables:")
	namer := schema.NamingStrategy{}
	for _, m := range database.Models() {
		if s, err := schema.Parse(m, &sync.Map{}, namer); err == nil {
			log.Println("  -", s.Table)
		}
	}
}
