// Package reports owns the report lifecycle: creation with image ingestion,
// status transitions, resolution evidence and the follower set.
package reports

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store is the persistence the lifecycle needs.
type Store interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	UpdateReport(ctx context.Context, id string, fields map[string]interface{}) (*models.Report, error)
	AppendResolutionImage(ctx context.Context, id, ref string) (*models.Report, error)
	AddFollower(ctx context.Context, reportID, userID string) ([]string, error)
	RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error)
	IncrementReportsCount(ctx context.Context, userID string) error
	TopReporters(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error)
	SaveComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, reportID string) ([]models.Comment, error)
}

// Ingester turns an inbound photo into a stored reference.
type Ingester interface {
	Ingest(ctx context.Context, payload imaging.Payload, folder string) (string, error)
}

// Publisher is the realtime bus as seen by the lifecycle.
type Publisher interface {
	PublishToReport(ctx context.Context, reportID, name string, payload interface{})
	PublishGlobal(ctx context.Context, name string, payload interface{})
}

// StatusNotifier is told about every effective status change. It must not
// block on notification delivery.
type StatusNotifier interface {
	OnStatusChanged(ctx context.Context, report *models.Report, oldStatus, newStatus models.ReportStatus)
}

// Service implements the report lifecycle.
type Service struct {
	store    Store
	images   Ingester
	bus      Publisher
	notifier StatusNotifier
	validate *validator.Validate
	logger   *zap.Logger

	// strict enables the transition table; otherwise any status may follow any other.
	strict bool
}

// Options configures a Service.
type Options struct {
	StrictTransitions bool
}

// NewService wires the lifecycle to its collaborators.
func NewService(store Store, images Ingester, bus Publisher, notifier StatusNotifier, logger *zap.Logger, opts Options) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Service{
		store:    store,
		images:   images,
		bus:      bus,
		notifier: notifier,
		validate: v,
		logger:   logger,
		strict:   opts.StrictTransitions,
	}
}

// CreateInput is a citizen submission.
type CreateInput struct {
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description" validate:"required"`
	Category         string `json:"category" validate:"required"`
	Location         string `json:"location" validate:"required"`
	Address          string `json:"address"`
	ReporterEmail    string `json:"reporterEmail" validate:"omitempty,email"`
	ReporterUsername string `json:"reporterUsername"`

	// ReporterID is set from the authenticated identity, never from the body.
	ReporterID string          `json:"-"`
	Image      imaging.Payload `json:"-"`
}

func (in *CreateInput) trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	in.Address = strings.TrimSpace(in.Address)
	in.ReporterEmail = strings.TrimSpace(in.ReporterEmail)
	in.ReporterUsername = strings.TrimSpace(in.ReporterUsername)
}

// Create validates and persists a new report in the Pending state.
// A photo that cannot be stored anywhere leaves the report without images.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Report, error) {
	in.trim()
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	images := []string{}
	if !in.Image.Empty() {
		ref, err := s.images.Ingest(ctx, in.Image, config.ReportImageFolder)
		switch {
		case err == nil:
			images = append(images, ref)
		case errors.Is(err, imaging.ErrNoImage):
			s.logger.Info("report submitted without a usable image", zap.String("title", in.Title))
		default:
			return nil, err
		}
	}

	report := &models.Report{
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		Location:         in.Location,
		Address:          in.Address,
		Images:           images,
		ResolutionImages: []string{},
		Followers:        []string{},
		Status:           models.StatusPending,
		ReporterID:       in.ReporterID,
		ReporterEmail:    in.ReporterEmail,
		ReporterUsername: in.ReporterUsername,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	if in.ReporterID != "" {
		if err := s.store.IncrementReportsCount(ctx, in.ReporterID); err != nil {
			s.logger.Warn("failed to bump reporter counter",
				zap.String("user_id", in.ReporterID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("report created", zap.String("report_id", report.ID), zap.String("category", report.Category))
	s.bus.PublishGlobal(ctx, models.EventNewIssue, report)
	return report, nil
}

// Get loads one report.
func (s *Service) Get(ctx context.Context, id string) (*models.Report, error) {
	return s.store.GetReport(ctx, id)
}

// List returns reports newest first.
func (s *Service) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown status filter", "status")
	}
	return s.store.ListReports(ctx, filter)
}

// UpdateResult is the outcome of ApplyUpdate.
type UpdateResult struct {
	Report        *models.Report
	OldStatus     models.ReportStatus
	StatusChanged bool
}

// ApplyUpdate merges u onto the stored report. When the status actually
// changes the notifier is triggered exactly once; the call does not wait for
// any notification to be delivered.
func (s *Service) ApplyUpdate(ctx context.Context, id string, u Update) (*UpdateResult, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := report.Status

	fields, target, err := s.plan(report, u)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return &UpdateResult{Report: report, OldStatus: oldStatus}, nil
	}

	updated, err := s.store.UpdateReport(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		Report:        updated,
		OldStatus:     oldStatus,
		StatusChanged: u.Status != nil && target != oldStatus,
	}
	if result.StatusChanged {
		s.logger.Info("report status changed",
			zap.String("report_id", id),
			zap.String("from", string(oldStatus)),
			zap.String("to", string(target)),
		)
		s.notifier.OnStatusChanged(ctx, updated, oldStatus, target)
	}
	return result, nil
}

// plan turns an Update into column writes, applying the transition table
// and the rejection-remark policy.
func (s *Service) plan(report *models.Report, u Update) (map[string]interface{}, models.ReportStatus, error) {
	target := report.Status
	if u.Status != nil {
		target = *u.Status
		if !target.Valid() {
			return nil, "", apperr.Validation("unknown status "+string(target), "status")
		}
		if s.strict && !CanTransition(report.Status, target) {
			return nil, "", apperr.Validation(
				"transition from "+string(report.Status)+" to "+string(target)+" is not allowed", "status")
		}
	}

	fields := make(map[string]interface{})
	if u.Status != nil {
		fields["status"] = target
	}

	var remark string
	if u.RejectionRemark != nil {
		remark = strings.TrimSpace(*u.RejectionRemark)
	}

	if target == models.StatusRejected {
		if u.RejectionRemark != nil {
			fields["rejection_remark"] = remark
		}
		return fields, target, nil
	}

	if remark != "" {
		return nil, "", apperr.Validation("rejectionRemark is only accepted with status Rejected", "rejectionRemark")
	}
	if report.RejectionRemark != "" {
		fields["rejection_remark"] = ""
	}
	return fields, target, nil
}

// AppendResolutionImage stores a staff photo and appends it to the report.
// A photo is mandatory here.
func (s *Service) AppendResolutionImage(ctx context.Context, id string, payload imaging.Payload) (*models.Report, error) {
	if _, err := s.store.GetReport(ctx, id); err != nil {
		return nil, err
	}

	if payload.Empty() {
		return nil, apperr.Validation("a resolution image is required", "image")
	}
	ref, err := s.images.Ingest(ctx, payload, config.ResolutionImageFolder)
	if errors.Is(err, imaging.ErrNoImage) {
		return nil, apperr.Validation("a resolution image is required", "image")
	}
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, apperr.Validation("a resolution image is required", "image")
	}

	return s.store.AppendResolutionImage(ctx, id, ref)
}

// AddFollower adds userID to the follower set and returns the new set.
func (s *Service) AddFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required", "userId")
	}
	return s.store.AddFollower(ctx, reportID, userID)
}

// RemoveFollower removes userID from the follower set and returns the new set.
func (s *Service) RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required", "userId")
	}
	return s.store.RemoveFollower(ctx, reportID, userID)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return apperr.Validation("missing or invalid fields", fields...)
}
