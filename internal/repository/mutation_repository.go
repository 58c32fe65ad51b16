package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

const mutationColumns = `id, survey_id, location_of_interest_id, job_id, submission_id, type,
       sync_status, response_deltas, retry_count, last_error, user_id, client_timestamp, updated_at`

// MutationRepository is the durable outbox of pending submission mutations.
type MutationRepository struct {
	db *sqlx.DB
}

// NewMutationRepository constructs the repository.
func NewMutationRepository(db *sqlx.DB) *MutationRepository {
	return &MutationRepository{db: db}
}

// Append persists a new record with status PENDING. The insert is a single
// statement, so the record is either fully durable or not visible at all.
// The engine assigns the monotonic id; Append writes it back to the record.
func (r *MutationRepository) Append(ctx context.Context, record *models.SubmissionMutationRecord) error {
	if record.SyncStatus == "" {
		record.SyncStatus = models.SyncStatusPending
	}
	if record.ClientTimestamp == 0 {
		record.ClientTimestamp = time.Now().UTC().UnixMilli()
	}
	record.UpdatedAt = time.Now().UTC().UnixMilli()
	const query = `INSERT INTO submission_mutations
	(survey_id, location_of_interest_id, job_id, submission_id, type, sync_status, response_deltas, retry_count, last_error, user_id, client_timestamp, updated_at)
	VALUES (:survey_id, :location_of_interest_id, :job_id, :submission_id, :type, :sync_status, :response_deltas, :retry_count, :last_error, :user_id, :client_timestamp, :updated_at)`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("append submission mutation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read appended mutation id: %w", err)
	}
	record.ID = id
	return nil
}

// GetByID fetches a record by identifier.
func (r *MutationRepository) GetByID(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM submission_mutations WHERE id = ?`, mutationColumns)
	var record models.SubmissionMutationRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPending returns PENDING records ordered by client timestamp with id as
// tie-breaker, optionally scoped to one submission. The ordering is the
// causal replay order regardless of physical storage order.
func (r *MutationRepository) ListPending(ctx context.Context, submissionID string) ([]models.SubmissionMutationRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM submission_mutations WHERE sync_status = ?`, mutationColumns))
	args = append(args, models.SyncStatusPending)
	if submissionID != "" {
		builder.WriteString(" AND submission_id = ?")
		args = append(args, submissionID)
	}
	builder.WriteString(" ORDER BY client_timestamp ASC, id ASC")

	var records []models.SubmissionMutationRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list pending mutations: %w", err)
	}
	return records, nil
}

// List returns records matching the filter, oldest first.
func (r *MutationRepository) List(ctx context.Context, filter models.MutationFilter) ([]models.SubmissionMutationRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM submission_mutations`, mutationColumns))

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = "?"
		}
		conditions = append(conditions, fmt.Sprintf("sync_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SubmissionID != "" {
		args = append(args, filter.SubmissionID)
		conditions = append(conditions, "submission_id = ?")
	}
	if filter.LocationOfInterestID != "" {
		args = append(args, filter.LocationOfInterestID)
		conditions = append(conditions, "location_of_interest_id = ?")
	}
	if filter.SurveyID != "" {
		args = append(args, filter.SurveyID)
		conditions = append(conditions, "survey_id = ?")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "type = ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY client_timestamp ASC, id ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.SubmissionMutationRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	return records, nil
}

// UpdateStatusParams groups the mutable bookkeeping columns.
type UpdateStatusParams struct {
	ID         int64
	Status     models.SyncStatus
	RetryCount *int64
	LastError  *string
	ClearError bool
}

// UpdateStatus persists a status transition. Returns sql.ErrNoRows when the
// record no longer exists, e.g. after a concurrent cascade delete.
func (r *MutationRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{
		"sync_status = :sync_status",
		"updated_at = :updated_at",
	}
	if params.RetryCount != nil {
		setParts = append(setParts, "retry_count = :retry_count")
	}
	if params.LastError != nil {
		setParts = append(setParts, "last_error = :last_error")
	} else if params.ClearError {
		setParts = append(setParts, "last_error = NULL")
	}
	query := fmt.Sprintf("UPDATE submission_mutations SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"sync_status": params.Status,
		"retry_count": params.RetryCount,
		"last_error":  params.LastError,
		"updated_at":  time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("update mutation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mutation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClaimNextPending atomically moves the oldest PENDING record of the
// submission to IN_PROGRESS and returns it. The claim refuses while another
// record of the same submission is still IN_PROGRESS, which keeps replay
// strictly ordered per submission. Returns sql.ErrNoRows when nothing is
// claimable and ErrConflict when a concurrent claim won the race.
func (r *MutationRepository) ClaimNextPending(ctx context.Context, submissionID string) (*models.SubmissionMutationRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var inFlight int64
	const inFlightQuery = `SELECT COUNT(*) FROM submission_mutations
		WHERE submission_id = ? AND sync_status = ?`
	if err := tx.GetContext(ctx, &inFlight, inFlightQuery, submissionID, models.SyncStatusInProgress); err != nil {
		return nil, fmt.Errorf("check in-flight mutations: %w", err)
	}
	if inFlight > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already has an in-flight mutation")
	}

	query := fmt.Sprintf(`SELECT %s FROM submission_mutations
		WHERE submission_id = ? AND sync_status = ?
		ORDER BY client_timestamp ASC, id ASC LIMIT 1`, mutationColumns)
	var record models.SubmissionMutationRecord
	if err := tx.GetContext(ctx, &record, query, submissionID, models.SyncStatusPending); err != nil {
		return nil, err
	}

	// Compare-and-set on status: losing a concurrent race leaves zero rows.
	const claimQuery = `UPDATE submission_mutations
		SET sync_status = ?, updated_at = ?
		WHERE id = ? AND sync_status = ?`
	result, err := tx.ExecContext(ctx, claimQuery,
		models.SyncStatusInProgress, time.Now().UTC().UnixMilli(), record.ID, models.SyncStatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim mutation %d: %w", record.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check claim rows: %w", err)
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "mutation claimed concurrently")
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	record.SyncStatus = models.SyncStatusInProgress
	return &record, nil
}

// ResetInFlight returns every IN_PROGRESS record to PENDING. Run at startup:
// an apply attempt interrupted by a crash was never acknowledged, and the
// remote apply is idempotent, so replaying it is safe.
func (r *MutationRepository) ResetInFlight(ctx context.Context) (int64, error) {
	const query = `UPDATE submission_mutations SET sync_status = ?, updated_at = ? WHERE sync_status = ?`
	result, err := r.db.ExecContext(ctx, query,
		models.SyncStatusPending, time.Now().UTC().UnixMilli(), models.SyncStatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight mutations: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a record. Deleting a missing id is a no-op.
func (r *MutationRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM submission_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete mutation %d: %w", id, err)
	}
	return nil
}

// DeleteBySubmission removes all records of a submission. Used by the
// application-level cascade when the parent submission is deleted.
func (r *MutationRepository) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM submission_mutations WHERE submission_id = ?`, submissionID); err != nil {
		return fmt.Errorf("delete mutations of submission %s: %w", submissionID, err)
	}
	return nil
}

// DeleteByLocationOfInterest removes all records under a location of
// interest when the parent entity is deleted locally.
func (r *MutationRepository) DeleteByLocationOfInterest(ctx context.Context, loiID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM submission_mutations WHERE location_of_interest_id = ?`, loiID); err != nil {
		return fmt.Errorf("delete mutations of location of interest %s: %w", loiID, err)
	}
	return nil
}

// DeletePendingBySubmission discards the remaining PENDING records of a
// submission. A successfully applied DELETE moots everything queued after
// it, so those records are dropped without a remote round trip.
func (r *MutationRepository) DeletePendingBySubmission(ctx context.Context, submissionID string) (int64, error) {
	const query = `DELETE FROM submission_mutations WHERE submission_id = ? AND sync_status = ?`
	result, err := r.db.ExecContext(ctx, query, submissionID, models.SyncStatusPending)
	if err != nil {
		return 0, fmt.Errorf("delete pending mutations of submission %s: %w", submissionID, err)
	}
	return result.RowsAffected()
}

// PendingSubmissionIDs lists the submissions that currently have PENDING
// records, ordered by their oldest pending change.
func (r *MutationRepository) PendingSubmissionIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT submission_id FROM submission_mutations
		WHERE sync_status = ?
		GROUP BY submission_id
		ORDER BY MIN(client_timestamp) ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.SyncStatusPending); err != nil {
		return nil, fmt.Errorf("list pending submission ids: %w", err)
	}
	return ids, nil
}

// PurgeCompletedBefore drops COMPLETED records last touched before the
// cutoff. Completed rows are retained for audit until the retention TTL.
func (r *MutationRepository) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM submission_mutations WHERE sync_status = ? AND updated_at < ?`
	result, err := r.db.ExecContext(ctx, query, models.SyncStatusCompleted, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge completed mutations: %w", err)
	}
	return result.RowsAffected()
}

// Stats aggregates row counts per status.
func (r *MutationRepository) Stats(ctx context.Context) (*models.MutationStats, error) {
	const query = `SELECT sync_status, COUNT(*) AS count FROM submission_mutations GROUP BY sync_status`
	rows := []struct {
		SyncStatus models.SyncStatus `db:"sync_status"`
		Count      int64             `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("mutation stats: %w", err)
	}
	stats := &models.MutationStats{}
	for _, row := range rows {
		switch row.SyncStatus {
		case models.SyncStatusPending:
			stats.Pending = row.Count
		case models.SyncStatusInProgress:
			stats.InProgress = row.Count
		case models.SyncStatusCompleted:
			stats.Completed = row.Count
		case models.SyncStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

// RetryFailed moves a FAILED record back to PENDING for a manual retry,
// keeping its retry count. Returns ErrConflict when the record is not FAILED.
func (r *MutationRepository) RetryFailed(ctx context.Context, id int64) error {
	const query = `UPDATE submission_mutations SET sync_status = ?, updated_at = ?
		WHERE id = ? AND sync_status = ?`
	result, err := r.db.ExecContext(ctx, query,
		models.SyncStatusPending, time.Now().UTC().UnixMilli(), id, models.SyncStatusFailed)
	if err != nil {
		return fmt.Errorf("retry mutation %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check retry rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return err
		}
		return appErrors.Clone(appErrors.ErrConflict, "only FAILED mutations can be retried")
	}
	return nil
}
