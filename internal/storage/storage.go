package storage

import (
	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Storage is the full persistence surface. Consumers depend on the narrower
// interfaces they declare themselves.
type Storage interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	UpdateReport(ctx context.Context, id string, fields map[string]interface{}) (*models.Report, error)
	AppendResolutionImage(ctx context.Context, id, ref string) (*models.Report, error)
	AddFollower(ctx context.Context, reportID, userID string) ([]string, error)
	RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error)

	SaveUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	IncrementReportsCount(ctx context.Context, userID string) error
	TopReporters(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error)

	SaveComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, reportID string) ([]models.Comment, error)

	RecordNotification(ctx context.Context, entry *models.NotificationLog) error

	PublishEvent(ctx context.Context, channel string, ev models.Event) error
	SubscribeEvents(ctx context.Context, channel string) (<-chan models.Event, func() error)
}

// Service implements Storage on PostgreSQL (gorm) and Redis.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *zap.Logger
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor. rdb may be nil when no relay is configured.
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		DB:     db,
		Redis:  rdb,
		logger: logger,
	}
}

// Migrate creates or updates every table the service owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Report{},
		&models.User{},
		&models.Comment{},
		&models.NotificationLog{},
	)
}

// CreateReport inserts a new report; BeforeCreate fills ID and defaults.
func (s *Service) CreateReport(ctx context.Context, report *models.Report) error {
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		s.logger.Error("failed to create report", zap.Error(err))
		return apperr.Internal("failed to create report", err)
	}
	return nil
}

// GetReport loads one report by ID.
func (s *Service) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if !isReportID(id) {
		return nil, apperr.NotFound("report", id)
	}
	var report models.Report
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("report", id)
	}
	if err != nil {
		s.logger.Error("failed to get report", zap.String("report_id", id), zap.Error(err))
		return nil, apperr.Internal("failed to load report", err)
	}
	return &report, nil
}

// ListReports returns reports newest first.
func (s *Service) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	q := s.DB.WithContext(ctx).Model(&models.Report{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	reports := []models.Report{}
	if err := q.Order("created_at desc").Find(&reports).Error; err != nil {
		s.logger.Error("failed to list reports", zap.Error(err))
		return nil, apperr.Internal("failed to list reports", err)
	}
	return reports, nil
}

// UpdateReport writes the given columns and returns the stored entity.
// Concurrent updates are last-writer-wins at row level.
func (s *Service) UpdateReport(ctx context.Context, id string, fields map[string]interface{}) (*models.Report, error) {
	if !isReportID(id) {
		return nil, apperr.NotFound("report", id)
	}
	res := s.DB.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		s.logger.Error("failed to update report", zap.String("report_id", id), zap.Error(res.Error))
		return nil, apperr.Internal("failed to update report", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("report", id)
	}
	return s.GetReport(ctx, id)
}

// AppendResolutionImage appends ref in a single statement so concurrent
// uploads never overwrite each other.
func (s *Service) AppendResolutionImage(ctx context.Context, id, ref string) (*models.Report, error) {
	if !isReportID(id) {
		return nil, apperr.NotFound("report", id)
	}
	var report models.Report
	res := s.DB.WithContext(ctx).Raw(`
		UPDATE reports
		SET resolution_images = array_append(COALESCE(resolution_images, '{}'), ?),
		    updated_at = NOW()
		WHERE id = ?
		RETURNING *`, ref, id).Scan(&report)
	if res.Error != nil {
		s.logger.Error("failed to append resolution image", zap.String("report_id", id), zap.Error(res.Error))
		return nil, apperr.Internal("failed to append resolution image", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("report", id)
	}
	_ = report.AfterFind(nil)
	return &report, nil
}

type followerRow struct {
	Followers pq.StringArray
}

// AddFollower inserts userID into the follower set. Membership is checked
// inside the UPDATE, so concurrent follows of the same user stay unique.
func (s *Service) AddFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	return s.mutateFollowers(ctx, reportID, `
		UPDATE reports
		SET followers = CASE
		        WHEN ? = ANY(COALESCE(followers, '{}')) THEN followers
		        ELSE array_append(COALESCE(followers, '{}'), ?)
		    END,
		    updated_at = NOW()
		WHERE id = ?
		RETURNING followers`, userID, userID, reportID)
}

// RemoveFollower drops userID from the follower set; absent users are a no-op.
func (s *Service) RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	return s.mutateFollowers(ctx, reportID, `
		UPDATE reports
		SET followers = array_remove(COALESCE(followers, '{}'), ?),
		    updated_at = NOW()
		WHERE id = ?
		RETURNING followers`, userID, reportID)
}

func (s *Service) mutateFollowers(ctx context.Context, reportID, query string, args ...interface{}) ([]string, error) {
	if !isReportID(reportID) {
		return nil, apperr.NotFound("report", reportID)
	}
	var row followerRow
	res := s.DB.WithContext(ctx).Raw(query, args...).Scan(&row)
	if res.Error != nil {
		s.logger.Error("failed to update followers", zap.String("report_id", reportID), zap.Error(res.Error))
		return nil, apperr.Internal("failed to update followers", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("report", reportID)
	}
	if row.Followers == nil {
		return []string{}, nil
	}
	return []string(row.Followers), nil
}

// isReportID reports whether id can name a stored report. The column is a
// uuid, so anything else would fail in Postgres instead of matching nothing.
func isReportID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
