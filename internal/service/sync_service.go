package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/fieldsync/internal/converter"
	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/internal/remote"
	"github.com/noah-isme/fieldsync/internal/repository"
	"github.com/noah-isme/fieldsync/pkg/config"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

type syncOutbox interface {
	ClaimNextPending(ctx context.Context, submissionID string) (*models.SubmissionMutationRecord, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	PendingSubmissionIDs(ctx context.Context) ([]string, error)
	ResetInFlight(ctx context.Context) (int64, error)
	DeletePendingBySubmission(ctx context.Context, submissionID string) (int64, error)
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (*models.MutationStats, error)
}

// SyncService drains the outbox against the remote store. Submissions are
// processed concurrently; records within one submission strictly in order.
type SyncService struct {
	outbox  syncOutbox
	schemas schemaProvider
	remote  remote.Store
	metrics *MetricsService
	logger  *zap.Logger
	cfg     config.SyncConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewSyncService constructs the worker.
func NewSyncService(outbox syncOutbox, schemas schemaProvider, store remote.Store, metrics *MetricsService, logger *zap.Logger, cfg config.SyncConfig) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &SyncService{
		outbox:  outbox,
		schemas: schemas,
		remote:  store,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// RecoverInFlight resets records stranded IN_PROGRESS by a crash back to
// PENDING. The interrupted apply was never acknowledged and the remote
// apply is idempotent, so replaying is safe. Run once at startup, before
// any worker pass.
func (s *SyncService) RecoverInFlight(ctx context.Context) error {
	count, err := s.outbox.ResetInFlight(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Sugar().Infow("recovered in-flight mutations", "count", count)
	}
	return nil
}

// RunOnce performs a full drain pass: every submission with pending records
// gets drained, up to the configured concurrency.
func (s *SyncService) RunOnce(ctx context.Context) error {
	submissionIDs, err := s.outbox.PendingSubmissionIDs(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, submissionID := range submissionIDs {
		submissionID := submissionID
		g.Go(func() error {
			return s.DrainSubmission(gctx, submissionID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if stats, err := s.outbox.Stats(ctx); err == nil {
		s.metrics.SetPending(stats.Pending)
	}
	s.metrics.MarkRun(time.Now().UTC())
	return nil
}

// DrainSubmission replays one submission's records oldest first. Each
// iteration claims exactly one record, releases the store, performs the
// remote call, and re-acquires to record the outcome; nothing in the local
// store is held across network waits. Record-level failures are written to
// the record and do not abort the drain of other records.
func (s *SyncService) DrainSubmission(ctx context.Context, submissionID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := s.outbox.ClaimNextPending(ctx, submissionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if errors.Is(err, appErrors.ErrConflict) {
				// Another worker owns this submission.
				s.metrics.ObserveClaimConflict()
				return nil
			}
			return err
		}

		start := time.Now()
		applyErr := s.apply(ctx, record)
		elapsed := time.Since(start)

		if err := s.resolve(ctx, record, applyErr, elapsed); err != nil {
			return err
		}
		if applyErr != nil && !appErrors.Retryable(applyErr) {
			// The record is FAILED; later records of this submission may
			// still apply.
			continue
		}
		if applyErr != nil {
			// Retryable failure: leave the rest for the next pass instead
			// of hammering an unavailable remote.
			return nil
		}
	}
}

// apply decodes and replays one record against the remote store.
func (s *SyncService) apply(ctx context.Context, record *models.SubmissionMutationRecord) error {
	survey, err := s.schemas.Survey(ctx, record.SurveyID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return appErrors.Wrap(err, appErrors.ErrLocalDataConsistency.Code, appErrors.ErrLocalDataConsistency.Status,
				"survey no longer resolvable for mutation")
		}
		return err
	}

	mutation, err := converter.ToDomain(record, survey)
	if err != nil {
		return err
	}

	switch mutation.Type {
	case models.MutationTypeCreate:
		doc := converter.SubmissionToDocument(s.newSubmission(mutation))
		return s.remote.PutSubmission(ctx, mutation.SurveyID, doc)
	case models.MutationTypeUpdate:
		set, clear := converter.DeltaFields(mutation)
		return s.remote.ApplySubmissionDeltas(ctx, mutation.SurveyID, mutation.SubmissionID, set, clear)
	case models.MutationTypeDelete:
		return s.remote.DeleteSubmission(ctx, mutation.SurveyID, mutation.SubmissionID)
	}
	return appErrors.Clone(appErrors.ErrValidation, "unsupported mutation type")
}

// resolve records the outcome of an apply attempt per the status machine.
func (s *SyncService) resolve(ctx context.Context, record *models.SubmissionMutationRecord, applyErr error, elapsed time.Duration) error {
	if applyErr == nil {
		err := s.outbox.UpdateStatus(ctx, repository.UpdateStatusParams{
			ID:         record.ID,
			Status:     models.SyncStatusCompleted,
			ClearError: true,
		})
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		s.metrics.ObserveApplied(elapsed)

		if record.Type == models.MutationTypeDelete {
			// The submission is gone remotely; everything queued after the
			// DELETE is moot and is dropped without a round trip.
			dropped, err := s.outbox.DeletePendingBySubmission(ctx, record.SubmissionID)
			if err != nil {
				return err
			}
			if dropped > 0 {
				s.logger.Sugar().Infow("dropped mutations mooted by delete",
					"submission_id", record.SubmissionID, "count", dropped)
			}
		}
		return nil
	}

	message := applyErr.Error()
	retryCount := record.RetryCount
	status := models.SyncStatusFailed
	kind := failureKind(applyErr)

	if appErrors.Retryable(applyErr) {
		retryCount++
		if retryCount < int64(s.cfg.MaxRetries) {
			status = models.SyncStatusPending
		}
	}

	record.RetryCount = retryCount
	record.SyncStatus = status
	err := s.outbox.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:         record.ID,
		Status:     status,
		RetryCount: &retryCount,
		LastError:  &message,
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	s.metrics.ObserveFailure(kind, elapsed)
	s.logger.Sugar().Warnw("mutation apply failed",
		"mutation_id", record.ID,
		"submission_id", record.SubmissionID,
		"status", status,
		"retry_count", retryCount,
		"kind", kind,
		"error", message,
	)
	return nil
}

// failureKind buckets apply errors for the failure counter.
func failureKind(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, appErrors.ErrLocalDataConsistency):
		return "local_data_consistency"
	case errors.Is(err, appErrors.ErrDataStore):
		return "data_store"
	}
	return "transient"
}

// newSubmission materializes the submission a CREATE mutation describes.
func (s *SyncService) newSubmission(m *models.SubmissionMutation) *models.Submission {
	data := make(map[string]models.Value, len(m.Deltas))
	for taskID, value := range m.Deltas {
		if value == nil {
			continue
		}
		data[taskID] = value
	}
	audit := models.AuditInfo{
		User:       models.UserInfo{ID: m.UserID},
		ClientTime: m.ClientTimestamp,
	}
	return &models.Submission{
		ID:                   m.SubmissionID,
		SurveyID:             m.SurveyID,
		LocationOfInterestID: m.LocationOfInterestID,
		JobID:                m.Job.ID,
		Data:                 data,
		Created:              audit,
		LastModified:         audit,
	}
}

// PurgeCompleted drops COMPLETED records older than the retention TTL.
func (s *SyncService) PurgeCompleted(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.RetentionTTL)
	return s.outbox.PurgeCompletedBefore(ctx, cutoff)
}

// Start launches the periodic drain loop. Safe to call once.
func (s *SyncService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := s.RunOnce(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Sugar().Errorw("sync pass failed", "error", err)
				}
				if _, err := s.PurgeCompleted(runCtx); err != nil {
					s.logger.Sugar().Warnw("retention purge failed", "error", err)
				}
			}
		}
	}()
	s.logger.Sugar().Infow("sync worker started", "interval", s.cfg.Interval, "concurrency", s.cfg.Concurrency)
}

// Stop cancels the drain loop and waits for it to exit. Cancellation takes
// effect between records, never mid-transition.
func (s *SyncService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("sync worker stopped")
}
