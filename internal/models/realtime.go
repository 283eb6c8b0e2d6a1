package models

import "encoding/json"

// Event names emitted on the realtime bus.
const (
	EventNewIssue     = "new_issue"
	EventStatusUpdate = "status_update"
	EventComment      = "comment"
)

// Event is the envelope delivered to realtime clients. Room is empty for
// global broadcasts.
type Event struct {
	Name string          `json:"event"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data"`
}

// StatusUpdatePayload is the body of a status_update event.
type StatusUpdatePayload struct {
	ReportID string       `json:"reportId"`
	Status   ReportStatus `json:"status"`
}

// CommentPayload is the body of a comment event.
type CommentPayload struct {
	ReportID string  `json:"reportId"`
	Comment  Comment `json:"comment"`
}

// ClientCommand is what a realtime client sends to change its subscriptions.
type ClientCommand struct {
	Action   string `json:"action"` // "joinReport", "leaveReport"
	ReportID string `json:"reportId"`
}
