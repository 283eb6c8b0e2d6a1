package reports

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/models"
)

// UpdatableFields is the closed set of keys a staff update may carry.
var UpdatableFields = map[string]bool{
	"status":          true,
	"rejectionRemark": true,
}

// Update is a partial staff update. Nil means "not supplied".
type Update struct {
	Status          *models.ReportStatus
	RejectionRemark *string
}

// Empty reports whether the update carries no field at all.
func (u Update) Empty() bool {
	return u.Status == nil && u.RejectionRemark == nil
}

// ParseUpdate decodes a raw JSON object into an Update. Keys outside
// UpdatableFields are rejected and named in the error.
func ParseUpdate(raw map[string]json.RawMessage) (Update, error) {
	var u Update

	var unknown []string
	for key := range raw {
		if !UpdatableFields[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return u, apperr.Validation("fields cannot be updated: "+strings.Join(unknown, ", "), unknown...)
	}
	if len(raw) == 0 {
		return u, apperr.Validation("no updatable fields supplied", "status", "rejectionRemark")
	}

	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return u, apperr.Validation("status must be a string", "status")
		}
		status, ok := models.ParseReportStatus(s)
		if !ok {
			return u, apperr.Validation("unknown status "+s, "status")
		}
		u.Status = &status
	}

	if v, ok := raw["rejectionRemark"]; ok {
		remark := ""
		if !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			if err := json.Unmarshal(v, &remark); err != nil {
				return u, apperr.Validation("rejectionRemark must be a string", "rejectionRemark")
			}
		}
		u.RejectionRemark = &remark
	}

	return u, nil
}

// transitions is consulted only when strict transitions are enabled.
var transitions = map[models.ReportStatus][]models.ReportStatus{
	models.StatusPending:    {models.StatusInProgress, models.StatusRejected},
	models.StatusInProgress: {models.StatusResolved, models.StatusRejected, models.StatusPending},
	models.StatusRejected:   {models.StatusPending, models.StatusInProgress},
	models.StatusResolved:   {models.StatusInProgress},
}

// CanTransition reports whether the strict table allows from -> to.
// Staying in the same status is always allowed.
func CanTransition(from, to models.ReportStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
