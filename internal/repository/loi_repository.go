package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// LocationOfInterestRepository caches the client's local copy of locations
// of interest.
type LocationOfInterestRepository struct {
	db *sqlx.DB
}

// NewLocationOfInterestRepository constructs the repository.
func NewLocationOfInterestRepository(db *sqlx.DB) *LocationOfInterestRepository {
	return &LocationOfInterestRepository{db: db}
}

type loiRow struct {
	ID       string `db:"id"`
	SurveyID string `db:"survey_id"`
	JobID    string `db:"job_id"`
	Document string `db:"document"`
}

// Save upserts the local copy of a location of interest document.
func (r *LocationOfInterestRepository) Save(ctx context.Context, surveyID, jobID, id string, fields map[string]interface{}) error {
	document, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode location of interest %s: %w", id, err)
	}
	const query = `INSERT INTO locations_of_interest (id, survey_id, job_id, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET document = excluded.document`
	if _, err := r.db.ExecContext(ctx, query, id, surveyID, jobID, string(document)); err != nil {
		return fmt.Errorf("save location of interest %s: %w", id, err)
	}
	return nil
}

// Get returns the stored field map of a location of interest.
func (r *LocationOfInterestRepository) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	var row loiRow
	if err := r.db.GetContext(ctx, &row, `SELECT id, survey_id, job_id, document FROM locations_of_interest WHERE id = ?`, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal([]byte(row.Document), &fields); err != nil {
		return nil, fmt.Errorf("decode location of interest %s: %w", id, err)
	}
	return fields, nil
}

// Delete removes a location of interest and cascades to its submissions and
// their mutation records in one transaction.
func (r *LocationOfInterestRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin location of interest delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM submission_mutations WHERE location_of_interest_id = ?`, id); err != nil {
		return fmt.Errorf("cascade mutations of location of interest %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE location_of_interest_id = ?`, id); err != nil {
		return fmt.Errorf("cascade submissions of location of interest %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations_of_interest WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete location of interest %s: %w", id, err)
	}
	return tx.Commit()
}
