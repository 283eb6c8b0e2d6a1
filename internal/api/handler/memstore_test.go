package handler_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// memStore is an in-memory stand-in for the Postgres storage service.
type memStore struct {
	mu       sync.Mutex
	reports  map[string]*models.Report
	users    map[string]models.User
	comments []models.Comment
	logs     []models.NotificationLog
}

func newMemStore(users ...models.User) *memStore {
	s := &memStore{reports: map[string]*models.Report{}, users: map[string]models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func clone(r *models.Report) *models.Report {
	c := *r
	c.Images = append(pq.StringArray{}, r.Images...)
	c.ResolutionImages = append(pq.StringArray{}, r.ResolutionImages...)
	c.Followers = append(pq.StringArray{}, r.Followers...)
	return &c
}

func (s *memStore) CreateReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New().String()
	r.CreatedAt = time.Now()
	s.reports[r.ID] = clone(r)
	return nil
}

func (s *memStore) GetReport(_ context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperr.NotFound("report", id)
	}
	return clone(r), nil
}

func (s *memStore) ListReports(_ context.Context, f models.ReportFilter) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Report{}
	for _, r := range s.reports {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		out = append(out, *clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) UpdateReport(_ context.Context, id string, fields map[string]interface{}) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperr.NotFound("report", id)
	}
	if v, ok := fields["status"]; ok {
		r.Status = v.(models.ReportStatus)
	}
	if v, ok := fields["rejection_remark"]; ok {
		r.RejectionRemark = v.(string)
	}
	return clone(r), nil
}

func (s *memStore) AppendResolutionImage(_ context.Context, id, ref string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperr.NotFound("report", id)
	}
	r.ResolutionImages = append(r.ResolutionImages, ref)
	return clone(r), nil
}

func (s *memStore) AddFollower(_ context.Context, reportID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, apperr.NotFound("report", reportID)
	}
	if !r.HasFollower(userID) {
		r.Followers = append(r.Followers, userID)
	}
	return append([]string{}, r.Followers...), nil
}

func (s *memStore) RemoveFollower(_ context.Context, reportID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, apperr.NotFound("report", reportID)
	}
	kept := pq.StringArray{}
	for _, f := range r.Followers {
		if f != userID {
			kept = append(kept, f)
		}
	}
	r.Followers = kept
	return append([]string{}, kept...), nil
}

func (s *memStore) IncrementReportsCount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.NotFound("user", userID)
	}
	u.ReportsCount++
	s.users[userID] = u
	return nil
}

func (s *memStore) TopReporters(_ context.Context, city string, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LeaderboardEntry{}
	for _, u := range s.users {
		if u.ReportsCount == 0 || (city != "" && u.City != city) {
			continue
		}
		out = append(out, models.LeaderboardEntry{
			ID: u.ID, Name: u.Name, Username: u.Username, City: u.City, ReportsCount: u.ReportsCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportsCount != out[j].ReportsCount {
			return out[i].ReportsCount > out[j].ReportsCount
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SaveComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	s.comments = append(s.comments, *c)
	return nil
}

func (s *memStore) ListComments(_ context.Context, reportID string) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.ReportID == reportID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) FindUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *memStore) RecordNotification(_ context.Context, e *models.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *e)
	return nil
}
