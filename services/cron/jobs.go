package cron

import (
	"context"
	"time"

	"github.com/sahilchouksey/course-platform-api/model"
)

// DeactivateInactiveUsers switches off accounts whose last login is older
// than the configured number of days. Users that never logged in are left alone.
func (m *CronManager) DeactivateInactiveUsers(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -m.inactiveDays)

	res := m.db.WithContext(ctx).
		Model(&model.User{}).
		Where("is_active = ? AND last_login IS NOT NULL AND last_login < ?", true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// CleanupExpiredTokens drops blacklist rows whose tokens have expired anyway
func (m *CronManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return m.blacklist.CleanupExpiredTokens(ctx)
}
