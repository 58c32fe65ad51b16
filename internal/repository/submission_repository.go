package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SubmissionRepository caches the client's local copy of submissions. The
// document column is the encoded remote field map.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

type submissionRow struct {
	ID                   string `db:"id"`
	SurveyID             string `db:"survey_id"`
	LocationOfInterestID string `db:"location_of_interest_id"`
	JobID                string `db:"job_id"`
	Document             string `db:"document"`
}

// Save upserts the local copy of a submission document.
func (r *SubmissionRepository) Save(ctx context.Context, surveyID, loiID, jobID, id string, fields map[string]interface{}) error {
	document, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", id, err)
	}
	const query = `INSERT INTO submissions (id, survey_id, location_of_interest_id, job_id, document)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET document = excluded.document`
	if _, err := r.db.ExecContext(ctx, query, id, surveyID, loiID, jobID, string(document)); err != nil {
		return fmt.Errorf("save submission %s: %w", id, err)
	}
	return nil
}

// Get returns the stored field map of a submission.
func (r *SubmissionRepository) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	var row submissionRow
	if err := r.db.GetContext(ctx, &row, `SELECT id, survey_id, location_of_interest_id, job_id, document FROM submissions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal([]byte(row.Document), &fields); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return fields, nil
}

// Delete removes a submission and cascades to its mutation records in one
// transaction: abandoned local edits for a deleted entity are discarded,
// not retried.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM submission_mutations WHERE submission_id = ?`, id); err != nil {
		return fmt.Errorf("cascade mutations of submission %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete submission %s: %w", id, err)
	}
	return tx.Commit()
}
