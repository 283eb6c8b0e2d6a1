// Package followers maps authenticated callers onto report follower sets.
package followers

import (
	"context"
	"strings"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"

	"go.uber.org/zap"
)

// Identity is the authenticated caller as seen by the registry.
type Identity struct {
	UserID string
	Role   models.Role
}

// SetStore performs the atomic set operations on a report's followers.
type SetStore interface {
	AddFollower(ctx context.Context, reportID, userID string) ([]string, error)
	RemoveFollower(ctx context.Context, reportID, userID string) ([]string, error)
}

// Registry follows and unfollows reports on behalf of an identity.
// Idempotence under concurrent calls comes from the store, which applies each
// change as a single conditional write.
type Registry struct {
	store  SetStore
	logger *zap.Logger
}

func NewRegistry(store SetStore, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Follow subscribes who to reportID and returns the resulting follower set.
func (r *Registry) Follow(ctx context.Context, who Identity, reportID string) ([]string, error) {
	userID, err := reference(who)
	if err != nil {
		return nil, err
	}
	set, err := r.store.AddFollower(ctx, reportID, userID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("report followed", zap.String("report_id", reportID), zap.String("user_id", userID))
	return set, nil
}

// Unfollow removes who from reportID's followers. Not following is fine.
func (r *Registry) Unfollow(ctx context.Context, who Identity, reportID string) ([]string, error) {
	userID, err := reference(who)
	if err != nil {
		return nil, err
	}
	set, err := r.store.RemoveFollower(ctx, reportID, userID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("report unfollowed", zap.String("report_id", reportID), zap.String("user_id", userID))
	return set, nil
}

// reference is the value stored in the follower set for an identity.
func reference(who Identity) (string, error) {
	id := strings.TrimSpace(who.UserID)
	if id == "" {
		return "", apperr.Validation("an authenticated user is required", "userId")
	}
	return id, nil
}
