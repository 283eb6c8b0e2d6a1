package config

import "time"

const (
	// Realtime
	ReportRoomPrefix   = "report_"
	EventRelayChannel  = "civictrack:events"
	ClientSendBuffer   = 64
	RelayRetryInterval = 2 * time.Second

	// Images
	ReportImageFolder     = "reports"
	ResolutionImageFolder = "resolutions"
	DefaultMaxImageBytes  = 10 << 20

	// Notifications
	DefaultNotifyConcurrency = 8
	DefaultLanguage          = "en"

	// Auth
	TokenTTL     = 72 * time.Hour
	LinkTokenTTL = 15 * time.Minute
	TokenIssuer  = "civictrack-service"
	// Audiences keep Telegram link tokens out of the API and vice versa.
	APIAudience  = "civictrack-api"
	LinkAudience = "telegram-link"

	// API
	DefaultListLimit        = 100
	DefaultLeaderboardLimit = 10
)

// ReportRoom returns the realtime room name for a report.
func ReportRoom(reportID string) string {
	return ReportRoomPrefix + reportID
}
