package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/sahilchouksey/course-platform-api/config"
	"github.com/sahilchouksey/course-platform-api/database"
	"github.com/sahilchouksey/course-platform-api/model"
	"gorm.io/gorm"
)

func main() {
	limit := flag.Int("limit", 20, "number of cron runs to show")
	stale := flag.Duration("stale", 24*time.Hour, "age after which an unpaid transfer is reported")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	env, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	store, err := database.StartGORM(env)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	db := store.GetDB()

	printCronRuns(db, *limit)
	printPendingTransfers(db, *stale)

	fmt.Println("\n========================================")
}

func printCronRuns(db *gorm.DB, limit int) {
	fmt.Println("========================================")
	fmt.Println("SCHEDULED JOB RUNS")
	fmt.Println("========================================")

	var runs []model.CronJobLog
	if err := db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch cron runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("\n❌ No scheduled job runs recorded")
		return
	}

	fmt.Printf("\n📋 Last %d runs:\n\n", len(runs))
	for _, run := range runs {
		statusIcon := "⏳"
		switch run.Status {
		case "completed":
			statusIcon = "✅"
		case "failed":
			statusIcon = "❌"
		case "running":
			statusIcon = "🔄"
		}

		fmt.Printf("%s %-28s %s  %6dms  affected=%d\n",
			statusIcon, run.JobName, run.StartedAt.Format("2006-01-02 15:04:05"), run.Duration, run.Affected)
		if run.ErrorMsg != "" {
			fmt.Printf("     Error: %s\n", truncate(run.ErrorMsg, 80))
		}
	}
}

// printPendingTransfers lists checkout sessions nobody reconciled yet
func printPendingTransfers(db *gorm.DB, stale time.Duration) {
	var pending []model.Payment
	db.Preload("Transfer").
		Where("payment_method = ? AND payment_status = ?", model.PaymentMethodTransfer, model.PaymentStatusCreated).
		Where("created_date < ?", time.Now().Add(-stale)).
		Order("created_date").
		Find(&pending)

	fmt.Println("\n========================================")
	fmt.Printf("UNPAID TRANSFERS OLDER THAN %s: %d\n", stale, len(pending))
	fmt.Println("========================================")

	for _, p := range pending {
		session := "no checkout session"
		if p.Transfer != nil {
			session = p.Transfer.SessionID
		}
		fmt.Printf("💳 Payment %d owner=%d amount=%s created=%s (%s)\n",
			p.ID, p.OwnerID, p.Amount.StringFixed(2), p.CreatedDate.Format("2006-01-02 15:04"), truncate(session, 40))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
