// Package handler is the HTTP and WebSocket surface of the report service.
package handler

import (
	"context"
	"net/http"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/eventhub"
	"civictrack/backend/internal/followers"
	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportService is the lifecycle as used by the API.
type ReportService interface {
	Create(ctx context.Context, in reports.CreateInput) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	ApplyUpdate(ctx context.Context, id string, u reports.Update) (*reports.UpdateResult, error)
	AppendResolutionImage(ctx context.Context, id string, payload imaging.Payload) (*models.Report, error)
	AddComment(ctx context.Context, reportID, authorID, text string) (*models.Comment, error)
	ListComments(ctx context.Context, reportID string) ([]models.Comment, error)
	Leaderboard(ctx context.Context, city string, limit int) ([]models.LeaderboardEntry, error)
}

// FollowerRegistry follows and unfollows on behalf of the caller.
type FollowerRegistry interface {
	Follow(ctx context.Context, who followers.Identity, reportID string) ([]string, error)
	Unfollow(ctx context.Context, who followers.Identity, reportID string) ([]string, error)
}

// Handler holds the collaborators of every route.
type Handler struct {
	Reports       ReportService
	Followers     FollowerRegistry
	Hub           *eventhub.Manager
	JWTSecret     string
	MaxImageBytes int64
	Logger        *zap.Logger
}

func NewHandler(reportSvc ReportService, registry FollowerRegistry, hub *eventhub.Manager, jwtSecret string, maxImageBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		Reports:       reportSvc,
		Followers:     registry,
		Hub:           hub,
		JWTSecret:     jwtSecret,
		MaxImageBytes: maxImageBytes,
		Logger:        logger,
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.GET("/issues", h.ListIssues)
	api.GET("/issues/:id", h.GetIssue)
	api.POST("/issues", h.OptionalAuth(), h.CreateIssue)
	api.GET("/issues/:id/comments", h.ListComments)
	api.GET("/users/leaderboard", h.Leaderboard)

	authed := api.Group("", h.RequireAuth())
	authed.POST("/issues/:id/follow", h.FollowIssue)
	authed.DELETE("/issues/:id/follow", h.UnfollowIssue)
	authed.POST("/issues/:id/comments", h.AddComment)
	authed.GET("/me/telegram-token", h.GetLinkToken)

	staff := authed.Group("", h.RequireStaff())
	staff.PATCH("/issues/:id", h.UpdateIssue)
	staff.PUT("/issues/:id", h.UpdateIssue)
	staff.POST("/issues/:id/resolution-images", h.UploadResolutionImage)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "realtimeClients": h.Hub.ClientCount()})
}

// respondError writes err as {code, message, fields} with its mapped status.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, apperr.ToJSON(err))
}
