package models

import (
	"time"

	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

// MutationType enumerates the kinds of pending change.
type MutationType string

const (
	MutationTypeCreate MutationType = "CREATE"
	MutationTypeUpdate MutationType = "UPDATE"
	MutationTypeDelete MutationType = "DELETE"
)

// SyncStatus is the outbox state machine position of a mutation record.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "PENDING"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	SyncStatusCompleted  SyncStatus = "COMPLETED"
	SyncStatusFailed     SyncStatus = "FAILED"
)

// Terminal reports whether the status ends processing without further
// retries.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// SubmissionMutationRecord is the durable outbox row. ResponseDeltas is the
// encoded sparse delta payload; it is nil exactly when Type is DELETE.
type SubmissionMutationRecord struct {
	ID                   int64        `db:"id" json:"id"`
	SurveyID             string       `db:"survey_id" json:"surveyId"`
	LocationOfInterestID string       `db:"location_of_interest_id" json:"locationOfInterestId"`
	JobID                string       `db:"job_id" json:"jobId"`
	SubmissionID         string       `db:"submission_id" json:"submissionId"`
	Type                 MutationType `db:"type" json:"type"`
	SyncStatus           SyncStatus   `db:"sync_status" json:"syncStatus"`
	ResponseDeltas       *string      `db:"response_deltas" json:"responseDeltas,omitempty"`
	RetryCount           int64        `db:"retry_count" json:"retryCount"`
	LastError            *string      `db:"last_error" json:"lastError,omitempty"`
	UserID               *string      `db:"user_id" json:"userId,omitempty"`
	ClientTimestamp      int64        `db:"client_timestamp" json:"clientTimestamp"`
	UpdatedAt            int64        `db:"updated_at" json:"updatedAt"`
}

// SubmissionMutation is the in-memory shape of a pending change, with deltas
// decoded against a live job schema. It is never persisted directly.
type SubmissionMutation struct {
	ID                   int64
	SurveyID             string
	LocationOfInterestID string
	Job                  *Job
	SubmissionID         string
	Type                 MutationType
	SyncStatus           SyncStatus
	Deltas               Deltas
	RetryCount           int64
	LastError            string
	UserID               string
	ClientTimestamp      time.Time
}

// NewSubmissionMutation validates the delta-presence invariant at
// construction: DELETE carries no deltas, CREATE and UPDATE must carry some.
func NewSubmissionMutation(m SubmissionMutation) (*SubmissionMutation, error) {
	switch m.Type {
	case MutationTypeCreate, MutationTypeUpdate:
		if len(m.Deltas) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deltas are required for CREATE and UPDATE mutations")
		}
	case MutationTypeDelete:
		if len(m.Deltas) != 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "DELETE mutations must not carry deltas")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported mutation type")
	}
	if m.Job == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mutation requires a resolved job schema")
	}
	if m.SurveyID == "" || m.LocationOfInterestID == "" || m.SubmissionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "surveyId, locationOfInterestId, and submissionId are required")
	}
	if m.SyncStatus == "" {
		m.SyncStatus = SyncStatusPending
	}
	if m.ClientTimestamp.IsZero() {
		m.ClientTimestamp = time.Now().UTC()
	}
	return &m, nil
}

// MutationFilter constrains listing queries.
type MutationFilter struct {
	Status               []SyncStatus
	SubmissionID         string
	LocationOfInterestID string
	SurveyID             string
	Type                 MutationType
	Limit                int
	Offset               int
}

// MutationStats aggregates outbox row counts per status.
type MutationStats struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
