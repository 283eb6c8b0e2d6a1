package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "Pending"
	StatusInProgress ReportStatus = "In Progress"
	StatusResolved   ReportStatus = "Resolved"
	StatusRejected   ReportStatus = "Rejected"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []ReportStatus{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// Valid reports whether s is one of the four known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// ParseReportStatus accepts the canonical spelling, any letter case, and the
// "InProgress"/"in_progress" variants older clients send.
func ParseReportStatus(s string) (ReportStatus, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	switch norm {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "resolved":
		return StatusResolved, true
	case "rejected":
		return StatusRejected, true
	}
	return "", false
}

// Report is a citizen-submitted civic issue tracked through its lifecycle.
type Report struct {
	// ID is assigned at creation (UUID) and never changes.
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string `gorm:"type:text;not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"type:text;not null;index" json:"category"`
	// Location is the raw "lat,lng" string sent by the client.
	Location string `gorm:"type:text;not null" json:"location"`
	Address  string `gorm:"type:text" json:"address,omitempty"`

	// Images and ResolutionImages hold either https URLs or data: URIs.
	Images           pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"images"`
	ResolutionImages pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"resolutionImages"`

	Status          ReportStatus `gorm:"type:text;not null;default:'Pending';index" json:"status"`
	RejectionRemark string       `gorm:"type:text" json:"rejectionRemark,omitempty"`

	// Followers is a set of user IDs; the storage layer keeps it duplicate free.
	Followers pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"followers"`

	// ReporterID is the authenticated creator, when there was one.
	ReporterID       string `gorm:"type:text;index" json:"reporterId,omitempty"`
	ReporterEmail    string `gorm:"type:text" json:"reporterEmail,omitempty"`
	ReporterUsername string `gorm:"type:text" json:"reporterUsername,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate assigns a UUID and applies the creation defaults.
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.normalize()
	return
}

// AfterFind makes absent array columns render as [] instead of null.
func (r *Report) AfterFind(tx *gorm.DB) (err error) {
	r.normalize()
	return
}

func (r *Report) normalize() {
	if r.Images == nil {
		r.Images = pq.StringArray{}
	}
	if r.ResolutionImages == nil {
		r.ResolutionImages = pq.StringArray{}
	}
	if r.Followers == nil {
		r.Followers = pq.StringArray{}
	}
}

// HasFollower reports whether userID is in the follower set.
func (r *Report) HasFollower(userID string) bool {
	for _, f := range r.Followers {
		if f == userID {
			return true
		}
	}
	return false
}

// ReportFilter narrows a report listing. Zero values mean "any".
type ReportFilter struct {
	Status   ReportStatus
	Category string
	Limit    int
}
