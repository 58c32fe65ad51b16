package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/fieldsync/internal/models"
)

// EnqueueMutationRequest is the intake payload for recording a local change.
// Deltas is the sparse task-id to value object; explicit JSON nulls mean
// "clear this response". It must be absent for DELETE mutations.
type EnqueueMutationRequest struct {
	Type                 string          `json:"type" validate:"required,oneof=CREATE UPDATE DELETE"`
	SurveyID             string          `json:"surveyId" validate:"required"`
	LocationOfInterestID string          `json:"locationOfInterestId" validate:"required"`
	JobID                string          `json:"jobId" validate:"required"`
	SubmissionID         string          `json:"submissionId" validate:"required"`
	Deltas               json.RawMessage `json:"deltas,omitempty"`
	UserID               string          `json:"userId,omitempty"`
	ClientTimestamp      int64           `json:"clientTimestamp,omitempty"`
}

// MutationQuery mirrors supported listing filters.
type MutationQuery struct {
	Status               []models.SyncStatus
	SubmissionID         string
	LocationOfInterestID string
	Type                 models.MutationType
	Limit                int
	Offset               int
}

// SyncStatusResponse reports queue depth and worker progress.
type SyncStatusResponse struct {
	Stats     *models.MutationStats `json:"stats"`
	Applied   uint64                `json:"applied"`
	Failed    uint64                `json:"failed"`
	LastRunAt *time.Time            `json:"lastRunAt,omitempty"`
}
