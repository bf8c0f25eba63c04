package main

import (
	"flag"
	"log"
	"os"

	"meeting-agent-be/internal/model"
	"meeting-agent-be/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

func main() {
	seed := flag.Bool("seed", false, "insert sample reference items")
	flag.Parse()

	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect
	db, err := database.NewGormDBFromDSN(dsn, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Extensions
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to enable pgcrypto: %v. Continuing...", err)
	}

	// 4. Tables
	log.Println("Running AutoMigrate for artifacts and reference_items...")
	if err := database.Migrate(db, &model.Artifact{}, &model.ReferenceItem{}); err != nil {
		log.Fatalf("Error: %v", err)
	}

	// 5. Optional sample data, upserted on external id
	if *seed {
		items := []model.ReferenceItem{
			{ExternalID: "T-10", Title: "Login rate limiting", Requirement: "Throttle repeated failed sign-ins per account", Status: "done", Rank: 1},
			{ExternalID: "T-11", Title: "Invoice export", Requirement: "Finance can export monthly invoices as CSV", Status: "in progress", Rank: 2},
			{ExternalID: "T-12", Title: "Checkout redesign", Requirement: "Single-page checkout with saved cards", Status: "blocked", Rank: 3},
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "requirement", "status", "rank"}),
		}).Create(&items).Error
		if err != nil {
			log.Fatalf("Error: seeding reference items failed: %v", err)
		}
		log.Printf("Seeded %d reference items", len(items))
	}

	log.Println("Migration complete.")
}
