package converter

import (
	"fmt"
	"time"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

// NewRecord flattens a domain mutation into its durable outbox row. The
// conversion is total: deltas encode via the delta codec and the job
// collapses to its bare id.
func NewRecord(m *models.SubmissionMutation) *models.SubmissionMutationRecord {
	record := &models.SubmissionMutationRecord{
		ID:                   m.ID,
		SurveyID:             m.SurveyID,
		LocationOfInterestID: m.LocationOfInterestID,
		JobID:                m.Job.ID,
		SubmissionID:         m.SubmissionID,
		Type:                 m.Type,
		SyncStatus:           m.SyncStatus,
		RetryCount:           m.RetryCount,
		ClientTimestamp:      m.ClientTimestamp.UnixMilli(),
	}
	if m.Type != models.MutationTypeDelete {
		encoded := EncodeDeltas(m.Deltas)
		record.ResponseDeltas = &encoded
	}
	if m.LastError != "" {
		lastError := m.LastError
		record.LastError = &lastError
	}
	if m.UserID != "" {
		userID := m.UserID
		record.UserID = &userID
	}
	return record
}

// ToDomain rehydrates an outbox row against the survey it was recorded for.
// A job id that no longer resolves means the local schema drifted out from
// under the record; the caller surfaces that and skips the record rather
// than aborting the whole pass.
func ToDomain(record *models.SubmissionMutationRecord, survey *models.Survey) (*models.SubmissionMutation, error) {
	job, ok := survey.Job(record.JobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrLocalDataConsistency,
			fmt.Sprintf("unknown job %q in submission mutation %d", record.JobID, record.ID))
	}

	var deltas models.Deltas
	if record.Type != models.MutationTypeDelete {
		if record.ResponseDeltas == nil {
			return nil, appErrors.Clone(appErrors.ErrLocalDataConsistency,
				fmt.Sprintf("submission mutation %d of type %s has no deltas", record.ID, record.Type))
		}
		decoded, err := DecodeDeltas(job, *record.ResponseDeltas)
		if err != nil {
			return nil, err
		}
		deltas = decoded
	}

	m := &models.SubmissionMutation{
		ID:                   record.ID,
		SurveyID:             record.SurveyID,
		LocationOfInterestID: record.LocationOfInterestID,
		Job:                  job,
		SubmissionID:         record.SubmissionID,
		Type:                 record.Type,
		SyncStatus:           record.SyncStatus,
		Deltas:               deltas,
		RetryCount:           record.RetryCount,
		ClientTimestamp:      time.UnixMilli(record.ClientTimestamp).UTC(),
	}
	if record.LastError != nil {
		m.LastError = *record.LastError
	}
	if record.UserID != nil {
		m.UserID = *record.UserID
	}
	return m, nil
}
