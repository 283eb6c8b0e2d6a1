package storage

import (
	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SaveUser upserts a user.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		return apperr.Internal("failed to save user", err)
	}
	return nil
}

// FindUserByID returns nil without error when the user does not exist.
func (s *Service) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return &user, nil
}

// FindUserByTelegramChatID returns nil without error when no user linked the chat.
func (s *Service) FindUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return &user, nil
}

// FindUsersByIDs resolves a follower set in one query. Unknown IDs are skipped.
func (s *Service) FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}
	return users, nil
}

// IncrementReportsCount bumps the leaderboard counter of a reporter.
func (s *Service) IncrementReportsCount(ctx context.Context, userID string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("reports_count", gorm.Expr("reports_count + ?", 1))
	if res.Error != nil {
		return apperr.Internal("failed to increment reports count", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", userID)
	}
	return nil
}

// TopReporters ranks users with at least one report by ReportsCount,
// optionally within one city.
func (s *Service) TopReporters(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error) {
	q := s.DB.WithContext(ctx).Model(&models.User{}).
		Select("id, name, username, city, reports_count").
		Where("reports_count > 0")
	if city != "" {
		q = q.Where("city = ?", city)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	entries := []models.LeaderboardEntry{}
	if err := q.Order("reports_count desc").Order("username asc").Scan(&entries).Error; err != nil {
		s.logger.Error("failed to load leaderboard", zap.String("city", city), zap.Error(err))
		return nil, apperr.Internal("failed to load leaderboard", err)
	}
	return entries, nil
}

// SaveComment inserts a comment; BeforeCreate fills the ID.
func (s *Service) SaveComment(ctx context.Context, comment *models.Comment) error {
	if err := s.DB.WithContext(ctx).Create(comment).Error; err != nil {
		s.logger.Error("failed to save comment", zap.String("report_id", comment.ReportID), zap.Error(err))
		return apperr.Internal("failed to save comment", err)
	}
	return nil
}

// ListComments returns the comments of a report, oldest first.
func (s *Service) ListComments(ctx context.Context, reportID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	if !isReportID(reportID) {
		return comments, nil
	}
	if err := s.DB.WithContext(ctx).Where("report_id = ?", reportID).Order("created_at asc").Find(&comments).Error; err != nil {
		return nil, apperr.Internal("failed to list comments", err)
	}
	return comments, nil
}

// RecordNotification appends a delivery attempt to the audit log.
func (s *Service) RecordNotification(ctx context.Context, entry *models.NotificationLog) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return apperr.Internal("failed to record notification", err)
	}
	return nil
}
