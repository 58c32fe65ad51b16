package converter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

// EncodeDeltas serializes a sparse delta mapping into its storable form: a
// JSON object keyed by task id, with explicit nulls meaning "clear this
// response". Encoding never fails for a well-formed mapping.
func EncodeDeltas(deltas models.Deltas) string {
	raw := make(map[string]interface{}, len(deltas))
	for taskID, value := range deltas {
		switch v := value.(type) {
		case nil:
			raw[taskID] = nil
		case models.TextValue:
			raw[taskID] = v.Text
		case models.NumberValue:
			raw[taskID] = v.Number
		case models.MultipleChoiceValue:
			raw[taskID] = v.OptionIDs
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only strings, numbers, string slices, and nils reach the encoder.
	_ = enc.Encode(raw)
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// DecodeDeltas interprets an encoded delta payload against a job schema.
// Task types determine how raw values deserialize, so decoding without the
// matching schema cannot succeed; a task id absent from the schema fails
// with a schema mismatch.
func DecodeDeltas(job *models.Job, encoded string) (models.Deltas, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSchemaMismatch.Code, appErrors.ErrSchemaMismatch.Status, "malformed delta payload")
	}

	deltas := make(models.Deltas, len(raw))
	for taskID, rawValue := range raw {
		task, ok := job.Task(taskID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("task %q not in schema of job %q", taskID, job.ID))
		}
		if string(rawValue) == "null" {
			deltas[taskID] = nil
			continue
		}
		value, err := decodeValue(task, rawValue)
		if err != nil {
			return nil, err
		}
		deltas[taskID] = value
	}
	return deltas, nil
}

func decodeValue(task *models.Task, raw json.RawMessage) (models.Value, error) {
	switch task.Type {
	case models.TaskTypeText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("task %q expects a text value", task.ID))
		}
		return models.TextValue{Text: text}, nil
	case models.TaskTypeNumber:
		var number float64
		if err := json.Unmarshal(raw, &number); err != nil {
			return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("task %q expects a numeric value", task.ID))
		}
		return models.NumberValue{Number: number}, nil
	case models.TaskTypeMultipleChoice:
		var optionIDs []string
		if err := json.Unmarshal(raw, &optionIDs); err != nil {
			return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("task %q expects a list of option ids", task.ID))
		}
		for _, optionID := range optionIDs {
			if _, ok := task.Option(optionID); !ok {
				return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("option %q not in schema of task %q", optionID, task.ID))
			}
		}
		return models.MultipleChoiceValue{OptionIDs: optionIDs}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrSchemaMismatch, fmt.Sprintf("task %q has unsupported type %q", task.ID, task.Type))
}
