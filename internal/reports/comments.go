package reports

import (
	"context"
	"strings"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"

	"go.uber.org/zap"
)

// AddComment stores a comment on an existing report and pushes it to the
// report's room.
func (s *Service) AddComment(ctx context.Context, reportID, authorID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("comment text is required", "text")
	}
	if authorID == "" {
		return nil, apperr.Validation("author is required", "authorId")
	}
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}

	comment := &models.Comment{ReportID: reportID, AuthorID: authorID, Text: text}
	if err := s.store.SaveComment(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Debug("comment added", zap.String("report_id", reportID), zap.String("comment_id", comment.ID))
	s.bus.PublishToReport(ctx, reportID, models.EventComment, models.CommentPayload{ReportID: reportID, Comment: *comment})
	return comment, nil
}

// ListComments returns a report's comments oldest first. Unknown reports are
// NotFound, as in AddComment.
func (s *Service) ListComments(ctx context.Context, reportID string) ([]models.Comment, error) {
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, reportID)
}
