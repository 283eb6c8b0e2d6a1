package models

import "time"

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// Notification kinds.
const (
	NotificationFollowerStatus = "follower_status_update"
	NotificationReporterUpdate = "reporter_update"
)

// Delivery outcomes.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// NotificationLog records one channel attempt for one recipient.
// It is an audit trail only; nothing is ever retried from it.
type NotificationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  string    `gorm:"type:uuid;not null;index" json:"reportId"`
	UserID    string    `gorm:"type:text;index" json:"userId,omitempty"`
	Channel   Channel   `gorm:"type:text;not null" json:"channel"`
	Recipient string    `gorm:"type:text;not null" json:"recipient"`
	Kind      string    `gorm:"type:text;not null" json:"kind"`
	Status    string    `gorm:"type:text;not null" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
