package reports

import (
	"context"
	"strings"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
)

// Leaderboard ranks reporters by the number of reports they filed. A
// non-positive limit means the default; larger limits are capped.
func (s *Service) Leaderboard(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = config.DefaultLeaderboardLimit
	case limit > config.DefaultListLimit:
		limit = config.DefaultListLimit
	}
	return s.store.TopReporters(ctx, strings.TrimSpace(city), limit)
}
