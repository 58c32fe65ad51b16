package converter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

func testJob() *models.Job {
	return &models.Job{
		ID:   "job-1",
		Name: "Tree survey",
		Tasks: map[string]*models.Task{
			"nameField": {ID: "nameField", Type: models.TaskTypeText, Label: "Name"},
			"heightField": {
				ID: "heightField", Type: models.TaskTypeNumber, Label: "Height",
			},
			"speciesField": {
				ID: "speciesField", Type: models.TaskTypeMultipleChoice, Label: "Species",
				MultipleChoice: &models.MultipleChoice{
					Cardinality: models.CardinalitySelectOne,
					Options: []models.Option{
						{ID: "opt-oak", Label: "Oak"},
						{ID: "opt-pine", Label: "Pine"},
					},
				},
			},
		},
	}
}

func TestDeltasRoundTrip(t *testing.T) {
	job := testJob()
	deltas := models.Deltas{
		"nameField":    models.TextValue{Text: "Oak"},
		"heightField":  models.NumberValue{Number: 12.5},
		"speciesField": models.MultipleChoiceValue{OptionIDs: []string{"opt-oak"}},
		"extraCleared": nil,
	}
	// The cleared entry must survive the trip too, so add it to the schema.
	job.Tasks["extraCleared"] = &models.Task{ID: "extraCleared", Type: models.TaskTypeText}

	encoded := EncodeDeltas(deltas)
	decoded, err := DecodeDeltas(job, encoded)
	require.NoError(t, err)
	require.Equal(t, deltas, decoded)
}

func TestDecodeDeltasExplicitClear(t *testing.T) {
	decoded, err := DecodeDeltas(testJob(), `{"nameField":null}`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	value, present := decoded["nameField"]
	require.True(t, present)
	require.Nil(t, value)
}

func TestDecodeDeltasUnknownTask(t *testing.T) {
	_, err := DecodeDeltas(testJob(), `{"ghostField":"boo"}`)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrSchemaMismatch))
}

func TestDecodeDeltasTypeDirected(t *testing.T) {
	_, err := DecodeDeltas(testJob(), `{"heightField":"tall"}`)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrSchemaMismatch))

	decoded, err := DecodeDeltas(testJob(), `{"heightField":3}`)
	require.NoError(t, err)
	require.Equal(t, models.NumberValue{Number: 3}, decoded["heightField"])
}

func TestDecodeDeltasUnknownOption(t *testing.T) {
	_, err := DecodeDeltas(testJob(), `{"speciesField":["opt-cactus"]}`)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrSchemaMismatch))
}

func TestDecodeDeltasMalformedPayload(t *testing.T) {
	_, err := DecodeDeltas(testJob(), `not json`)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrSchemaMismatch))
}
