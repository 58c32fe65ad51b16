package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/fieldsync/internal/dto"
	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

type surveyRepo interface {
	Save(ctx context.Context, survey *models.Survey) error
	GetByID(ctx context.Context, id string) (*models.Survey, error)
}

type schemaInvalidator interface {
	Invalidate(ctx context.Context, surveyID string)
}

// SurveyService imports and serves survey schema definitions.
type SurveyService struct {
	surveys surveyRepo
	schemas schemaInvalidator
	logger  *zap.Logger
}

// NewSurveyService constructs the service.
func NewSurveyService(surveys surveyRepo, schemas schemaInvalidator, logger *zap.Logger) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{surveys: surveys, schemas: schemas, logger: logger}
}

// ImportFromYAML reads a survey definition, validates it, and stores it,
// invalidating any cached schema for the same survey.
func (s *SurveyService) ImportFromYAML(ctx context.Context, r io.Reader) (*models.Survey, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read survey definition")
	}

	var definition dto.SurveyDefinition
	if err := yaml.Unmarshal(payload, &definition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed survey definition")
	}
	if definition.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "survey definition requires an id")
	}
	if len(definition.Jobs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "survey definition requires at least one job")
	}
	for _, job := range definition.Jobs {
		if job.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every job requires an id")
		}
		for _, task := range job.Tasks {
			switch models.TaskType(task.Type) {
			case models.TaskTypeText, models.TaskTypeNumber, models.TaskTypeMultipleChoice:
			default:
				return nil, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("task %q of job %q has unsupported type %q", task.ID, job.ID, task.Type))
			}
			if models.TaskType(task.Type) == models.TaskTypeMultipleChoice && task.MultipleChoice == nil {
				return nil, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("task %q of job %q is missing its option list", task.ID, job.ID))
			}
		}
	}

	survey := definition.ToModel()
	if err := s.surveys.Save(ctx, survey); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store survey")
	}
	if s.schemas != nil {
		s.schemas.Invalidate(ctx, survey.ID)
	}
	s.logger.Sugar().Infow("survey imported", "survey_id", survey.ID, "jobs", len(survey.Jobs))
	return survey, nil
}

// Get loads a survey definition.
func (s *SurveyService) Get(ctx context.Context, id string) (*models.Survey, error) {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	return survey, nil
}
