package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

const (
	collectionLOIs        = "lois"
	collectionSubmissions = "submissions"
)

// PostgresStore persists remote documents as JSONB rows. Upserts are keyed
// by (collection, survey, id), so re-sending a mutation that was applied but
// never acknowledged converges on the same row.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the adapter.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS remote_documents (
		collection TEXT NOT NULL,
		survey_id TEXT NOT NULL,
		id TEXT NOT NULL,
		fields JSONB NOT NULL,
		PRIMARY KEY (collection, survey_id, id)
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure remote schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutLocationOfInterest(ctx context.Context, surveyID string, doc Document) error {
	return s.upsert(ctx, collectionLOIs, surveyID, doc)
}

func (s *PostgresStore) GetLocationOfInterest(ctx context.Context, surveyID, id string) (Document, error) {
	return s.get(ctx, collectionLOIs, surveyID, id)
}

func (s *PostgresStore) PutSubmission(ctx context.Context, surveyID string, doc Document) error {
	return s.upsert(ctx, collectionSubmissions, surveyID, doc)
}

func (s *PostgresStore) GetSubmission(ctx context.Context, surveyID, id string) (Document, error) {
	return s.get(ctx, collectionSubmissions, surveyID, id)
}

func (s *PostgresStore) ApplySubmissionDeltas(ctx context.Context, surveyID, id string, set map[string]interface{}, clear []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply deltas: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const selectQuery = `SELECT fields FROM remote_documents
		WHERE collection = $1 AND survey_id = $2 AND id = $3 FOR UPDATE`
	var payload []byte
	fields := map[string]interface{}{}
	err = tx.GetContext(ctx, &payload, selectQuery, collectionSubmissions, surveyID, id)
	switch {
	case err == nil:
		if err := json.Unmarshal(payload, &fields); err != nil {
			return fmt.Errorf("decode submission %s: %w", id, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// Deltas against a missing document create it; at-least-once
		// replay and local/remote drift both land here.
	default:
		return fmt.Errorf("load submission %s: %w", id, err)
	}

	data, _ := fields["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	for taskID, value := range set {
		data[taskID] = value
	}
	for _, taskID := range clear {
		delete(data, taskID)
	}
	fields["data"] = data

	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", id, err)
	}
	const upsertQuery = `INSERT INTO remote_documents (collection, survey_id, id, fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, survey_id, id) DO UPDATE SET fields = EXCLUDED.fields`
	if _, err := tx.ExecContext(ctx, upsertQuery, collectionSubmissions, surveyID, id, merged); err != nil {
		return fmt.Errorf("apply deltas to submission %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) DeleteSubmission(ctx context.Context, surveyID, id string) error {
	const query = `DELETE FROM remote_documents
		WHERE collection = $1 AND survey_id = $2 AND id = $3`
	if _, err := s.db.ExecContext(ctx, query, collectionSubmissions, surveyID, id); err != nil {
		return fmt.Errorf("delete submission %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) upsert(ctx context.Context, collection, surveyID string, doc Document) error {
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode %s document %s: %w", collection, doc.ID, err)
	}
	const query = `INSERT INTO remote_documents (collection, survey_id, id, fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, survey_id, id) DO UPDATE SET fields = EXCLUDED.fields`
	if _, err := s.db.ExecContext(ctx, query, collection, surveyID, doc.ID, payload); err != nil {
		return fmt.Errorf("put %s document %s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, collection, surveyID, id string) (Document, error) {
	const query = `SELECT fields FROM remote_documents
		WHERE collection = $1 AND survey_id = $2 AND id = $3`
	var payload []byte
	if err := s.db.GetContext(ctx, &payload, query, collection, surveyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, appErrors.ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s document %s: %w", collection, id, err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Document{}, appErrors.Wrap(err, appErrors.ErrDataStore.Code, appErrors.ErrDataStore.Status,
			fmt.Sprintf("malformed %s document %s", collection, id))
	}
	return Document{ID: id, Fields: fields}, nil
}
