// Package subscription manages course subscriptions and the emails sent to
// subscribers when a course changes.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sahilchouksey/course-platform-api/model"
	"gorm.io/gorm"
)

const (
	MsgAdded   = "Подписка добавлена"
	MsgRemoved = "Подписка удалена"

	defaultConcurrency = 4
)

var ErrCourseNotFound = errors.New("course not found")

// Mailer delivers course update notices
type Mailer interface {
	SendCourseUpdateEmail(toEmail, courseName string) error
}

// Service toggles subscriptions and fans out update emails
type Service struct {
	db     *gorm.DB
	mailer Mailer
	logger *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewService builds a subscription service. A nil mailer disables notifications.
func NewService(db *gorm.DB, mailer Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		mailer: mailer,
		logger: logger,
		sem:    make(chan struct{}, defaultConcurrency),
	}
}

// Toggle subscribes userID to courseID, or unsubscribes when already subscribed.
// It returns true when a subscription now exists.
func (s *Service) Toggle(ctx context.Context, userID, courseID uint) (bool, error) {
	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course model.Course
		if err := tx.Select("id").First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}

		res := tx.Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&model.Subscription{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			added = false
			return nil
		}

		added = true
		return tx.Create(&model.Subscription{UserID: userID, CourseID: courseID}).Error
	})
	return added, err
}

// IsSubscribed reports whether userID follows courseID
func (s *Service) IsSubscribed(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// NotifyCourseUpdated emails every active subscriber of course in the
// background. Failures are logged per recipient.
func (s *Service) NotifyCourseUpdated(course *model.Course) {
	if s.mailer == nil || course == nil {
		return
	}

	var emails []string
	err := s.db.Model(&model.User{}).
		Joins("JOIN subscriptions ON subscriptions.user_id = users.id").
		Where("subscriptions.course_id = ? AND users.is_active = ?", course.ID, true).
		Pluck("users.email", &emails).Error
	if err != nil {
		s.logger.Error("load subscribers failed", "course_id", course.ID, "error", err)
		return
	}

	name := course.Name
	for _, email := range emails {
		s.wg.Add(1)
		go func(to string) {
			defer s.wg.Done()
			s.sem <- struct{}{}
			defer func() { <-s.sem }()

			if err := s.mailer.SendCourseUpdateEmail(to, name); err != nil {
				s.logger.Warn("course update email failed", "course_id", course.ID, "email", to, "error", err)
			}
		}(email)
	}
}

// Wait blocks until queued notifications have been attempted
func (s *Service) Wait() {
	s.wg.Wait()
}
