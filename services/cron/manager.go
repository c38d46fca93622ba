package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/utils/auth"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobDeactivateInactiveUsers = "deactivate_inactive_users"
	JobCleanupExpiredTokens    = "cleanup_expired_tokens"

	jobTimeout = 10 * time.Minute
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron         *cron.Cron
	db           *gorm.DB
	blacklist    *auth.BlacklistService
	inactiveDays int
}

// NewCronManager creates a new cron manager. Users who have not logged in for
// inactiveDays are deactivated by the daily job.
func NewCronManager(db *gorm.DB, inactiveDays int) *CronManager {
	if inactiveDays <= 0 {
		inactiveDays = 31
	}

	return &CronManager{
		cron:         cron.New(cron.WithSeconds()),
		db:           db,
		blacklist:    auth.NewBlacklistService(db),
		inactiveDays: inactiveDays,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Daily at 3 AM
	_, err := m.cron.AddFunc("0 0 3 * * *", func() {
		m.runJob(JobDeactivateInactiveUsers, m.DeactivateInactiveUsers)
	})
	if err != nil {
		return err
	}

	// Every hour
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.runJob(JobCleanupExpiredTokens, m.CleanupExpiredTokens)
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// runJob executes job and records the run in cron_job_logs
func (m *CronManager) runJob(jobName string, job func(ctx context.Context) (int64, error)) *model.CronJobLog {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	entry := m.logJobStart(jobName)
	affected, err := job(ctx)
	if err != nil {
		m.logJobError(entry, err)
	} else {
		m.logJobComplete(entry, affected)
	}
	return entry
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	meta, _ := json.Marshal(map[string]interface{}{"inactive_days": m.inactiveDays})
	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
		Metadata:  datatypes.JSON(meta),
	}
	if err := m.db.Create(entry).Error; err != nil {
		log.Printf("[CRON] Failed to record start of %s: %v", jobName, err)
	}
	return entry
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(entry *model.CronJobLog, affected int64) {
	now := time.Now()
	entry.Status = "completed"
	entry.CompletedAt = &now
	entry.Affected = affected
	entry.Duration = now.Sub(entry.StartedAt).Milliseconds()
	log.Printf("[CRON] Completed job: %s - %d rows affected", entry.JobName, affected)

	if entry.ID == 0 {
		return
	}
	m.db.Model(&model.CronJobLog{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":       entry.Status,
			"completed_at": now,
			"affected":     affected,
			"duration":     entry.Duration,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	now := time.Now()
	entry.Status = "failed"
	entry.CompletedAt = &now
	entry.ErrorMsg = err.Error()
	entry.Duration = now.Sub(entry.StartedAt).Milliseconds()
	log.Printf("[CRON] Error in job: %s - %v", entry.JobName, err)

	if entry.ID == 0 {
		return
	}
	m.db.Model(&model.CronJobLog{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":       entry.Status,
			"completed_at": now,
			"error_msg":    entry.ErrorMsg,
			"duration":     entry.Duration,
		})
}
