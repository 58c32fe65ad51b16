package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldsync/internal/models"
)

// SurveyRepository stores survey schema definitions as JSON documents.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs the repository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// Save upserts a survey definition.
func (r *SurveyRepository) Save(ctx context.Context, survey *models.Survey) error {
	definition, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("encode survey %s: %w", survey.ID, err)
	}
	const query = `INSERT INTO surveys (id, definition) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET definition = excluded.definition`
	if _, err := r.db.ExecContext(ctx, query, survey.ID, string(definition)); err != nil {
		return fmt.Errorf("save survey %s: %w", survey.ID, err)
	}
	return nil
}

// GetByID loads a survey definition.
func (r *SurveyRepository) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	var definition string
	if err := r.db.GetContext(ctx, &definition, `SELECT definition FROM surveys WHERE id = ?`, id); err != nil {
		return nil, err
	}
	var survey models.Survey
	if err := json.Unmarshal([]byte(definition), &survey); err != nil {
		return nil, fmt.Errorf("decode survey %s: %w", id, err)
	}
	return &survey, nil
}
