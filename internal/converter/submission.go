package converter

import (
	"fmt"

	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/internal/remote"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

const (
	fieldJobID        = "jobId"
	fieldLOIID        = "loiId"
	fieldData         = "data"
	fieldCreated      = "created"
	fieldLastModified = "lastModified"
)

// SubmissionToDocument maps a domain submission to its remote document.
// Every recognized field maps; empty data still writes an empty object so
// the document shape stays stable.
func SubmissionToDocument(s *models.Submission) remote.Document {
	data := make(map[string]interface{}, len(s.Data))
	for taskID, value := range s.Data {
		data[taskID] = valueToField(value)
	}
	return remote.Document{
		ID: s.ID,
		Fields: map[string]interface{}{
			fieldJobID:        s.JobID,
			fieldLOIID:        s.LocationOfInterestID,
			fieldData:         data,
			fieldCreated:      auditInfoToFields(s.Created),
			fieldLastModified: auditInfoToFields(s.LastModified),
		},
	}
}

// SubmissionFromDocument rebuilds a domain submission from its remote form.
// A document whose job cannot be resolved against the survey is rejected,
// not silently dropped. Audit metadata degrades gracefully: a missing
// created block falls back to a fixed value and a missing lastModified
// defaults to created.
func SubmissionFromDocument(survey *models.Survey, loiID string, doc remote.Document) (*models.Submission, error) {
	jobID, ok := doc.Fields[fieldJobID].(string)
	if !ok || jobID == "" {
		return nil, appErrors.Clone(appErrors.ErrDataStore, fmt.Sprintf("submission %s: missing %s", doc.ID, fieldJobID))
	}
	job, ok := survey.Job(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrDataStore, fmt.Sprintf("submission %s: job %q not in survey %s", doc.ID, jobID, survey.ID))
	}

	data, err := dataFromFields(job, doc.Fields[fieldData])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataStore.Code, appErrors.ErrDataStore.Status,
			fmt.Sprintf("submission %s: malformed data", doc.ID))
	}

	created := models.FallbackAuditInfo()
	if raw, ok := doc.Fields[fieldCreated]; ok {
		created = auditInfoFromFields(raw)
	}
	lastModified := created
	if raw, ok := doc.Fields[fieldLastModified]; ok {
		lastModified = auditInfoFromFields(raw)
	}

	return &models.Submission{
		ID:                   doc.ID,
		SurveyID:             survey.ID,
		LocationOfInterestID: loiID,
		JobID:                jobID,
		Data:                 data,
		Created:              created,
		LastModified:         lastModified,
	}, nil
}

// DeltaFields splits a mutation's deltas into the remote set/clear pair.
// Cleared responses are removed from the document rather than written as
// nulls.
func DeltaFields(m *models.SubmissionMutation) (set map[string]interface{}, clear []string) {
	set = make(map[string]interface{})
	for taskID, value := range m.Deltas {
		if value == nil {
			clear = append(clear, taskID)
			continue
		}
		set[taskID] = valueToField(value)
	}
	return set, clear
}

func valueToField(value models.Value) interface{} {
	switch v := value.(type) {
	case models.TextValue:
		return v.Text
	case models.NumberValue:
		return v.Number
	case models.MultipleChoiceValue:
		return v.OptionIDs
	}
	return nil
}

func dataFromFields(job *models.Job, raw interface{}) (map[string]models.Value, error) {
	if raw == nil {
		return map[string]models.Value{}, nil
	}
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("data is not an object")
	}
	data := make(map[string]models.Value, len(fields))
	for taskID, rawValue := range fields {
		task, ok := job.Task(taskID)
		if !ok {
			// Tasks removed from the schema after the submission was
			// written are dropped rather than failing the read.
			continue
		}
		value, err := fieldToValue(task, rawValue)
		if err != nil {
			return nil, err
		}
		data[taskID] = value
	}
	return data, nil
}

func fieldToValue(task *models.Task, raw interface{}) (models.Value, error) {
	switch task.Type {
	case models.TaskTypeText:
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("task %q: expected text", task.ID)
		}
		return models.TextValue{Text: text}, nil
	case models.TaskTypeNumber:
		number, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("task %q: expected number", task.ID)
		}
		return models.NumberValue{Number: number}, nil
	case models.TaskTypeMultipleChoice:
		optionIDs, err := asStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.ID, err)
		}
		return models.MultipleChoiceValue{OptionIDs: optionIDs}, nil
	}
	return nil, fmt.Errorf("task %q: unsupported type %q", task.ID, task.Type)
}

func asStringSlice(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string list")
}
