package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the user's position in the municipal workflow.
type Role string

const (
	RoleCitizen   Role = "Citizen"
	RoleAdmin     Role = "Admin"
	RoleAuthority Role = "Authority"
)

// IsStaff reports whether the role may change report status.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAuthority
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCitizen || r.IsStaff()
}

// User is the directory record the notification fan-out resolves followers to.
// Credentials are owned by the identity service and are not stored here.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Name     string `json:"name"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Email    string `gorm:"index" json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	// TelegramChatID is 0 when the user never linked the bot.
	TelegramChatID int64  `gorm:"index" json:"telegramChatId,omitempty"`
	Role           Role   `gorm:"type:text;not null;default:'Citizen'" json:"role"`
	City           string `json:"city,omitempty"`
	Language       string `json:"language,omitempty"`
	ReportsCount   int    `gorm:"not null;default:0" json:"reportsCount"`
}

// LeaderboardEntry is the public view of a reporter ranked by ReportsCount.
type LeaderboardEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	City         string `json:"city,omitempty"`
	ReportsCount int    `json:"reportsCount"`
}

// BeforeCreate generates a UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleCitizen
	}
	return
}
