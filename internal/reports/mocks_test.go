package reports_test

import (
	"context"
	"sync"

	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockStore) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockStore) UpdateReport(ctx context.Context, id string, fields map[string]interface{}) (*models.Report, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockStore) AppendResolutionImage(ctx context.Context, id, ref string) (*models.Report, error) {
	args := m.Called(ctx, id, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockStore) AddFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	args := m.Called(ctx, reportID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error) {
	args := m.Called(ctx, reportID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) IncrementReportsCount(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockStore) SaveComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockStore) ListComments(ctx context.Context, reportID string) ([]models.Comment, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, payload imaging.Payload, folder string) (string, error) {
	args := m.Called(ctx, payload, folder)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OnStatusChanged(ctx context.Context, report *models.Report, oldStatus, newStatus models.ReportStatus) {
	m.Called(ctx, report, oldStatus, newStatus)
}

type published struct {
	reportID string
	name     string
	payload  interface{}
}

// recordingBus captures every publish instead of delivering it.
type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) PublishToReport(_ context.Context, reportID, name string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{reportID: reportID, name: name, payload: payload})
}

func (b *recordingBus) PublishGlobal(_ context.Context, name string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{name: name, payload: payload})
}

func (b *recordingBus) named(name string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, e := range b.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockStore) TopReporters(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}
