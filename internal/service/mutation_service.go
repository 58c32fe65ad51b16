package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync/internal/converter"
	"github.com/noah-isme/fieldsync/internal/dto"
	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

type mutationOutbox interface {
	Append(ctx context.Context, record *models.SubmissionMutationRecord) error
	GetByID(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error)
	List(ctx context.Context, filter models.MutationFilter) ([]models.SubmissionMutationRecord, error)
	Delete(ctx context.Context, id int64) error
	RetryFailed(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.MutationStats, error)
}

type schemaProvider interface {
	Survey(ctx context.Context, surveyID string) (*models.Survey, error)
}

// SyncTrigger wakes the drain worker for a submission with fresh work.
type SyncTrigger interface {
	TriggerSubmission(submissionID string) error
}

// SyncTriggerFunc allows using plain functions as triggers.
type SyncTriggerFunc func(submissionID string) error

// TriggerSubmission implements SyncTrigger.
func (f SyncTriggerFunc) TriggerSubmission(submissionID string) error {
	return f(submissionID)
}

// MutationService is the outbox intake and surfacing layer: it validates
// incoming changes, records them durably, and exposes them for inspection,
// manual retry, and discard.
type MutationService struct {
	outbox   mutationOutbox
	schemas  schemaProvider
	trigger  SyncTrigger
	logger   *zap.Logger
	validate *validator.Validate
}

// MutationServiceOption configures the service.
type MutationServiceOption func(*MutationService)

// WithSyncTrigger wires the event-driven drain trigger.
func WithSyncTrigger(trigger SyncTrigger) MutationServiceOption {
	return func(s *MutationService) {
		if trigger != nil {
			s.trigger = trigger
		}
	}
}

// NewMutationService constructs the service with defaults.
func NewMutationService(outbox mutationOutbox, schemas schemaProvider, logger *zap.Logger, opts ...MutationServiceOption) *MutationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MutationService{
		outbox:   outbox,
		schemas:  schemas,
		logger:   logger,
		validate: validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Enqueue validates and records a local change, then nudges the sync worker.
// Deltas are decoded against the live job schema before anything is
// persisted, so a payload that cannot replay later is rejected up front.
func (s *MutationService) Enqueue(ctx context.Context, req dto.EnqueueMutationRequest) (*models.SubmissionMutationRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mutation payload")
	}

	mutationType := models.MutationType(strings.ToUpper(req.Type))

	survey, err := s.schemas.Survey(ctx, req.SurveyID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown survey %s", req.SurveyID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve survey schema")
	}
	job, ok := survey.Job(req.JobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown job %s in survey %s", req.JobID, req.SurveyID))
	}

	var deltas models.Deltas
	if mutationType != models.MutationTypeDelete {
		if len(req.Deltas) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deltas are required for CREATE and UPDATE mutations")
		}
		deltas, err = converter.DecodeDeltas(job, string(req.Deltas))
		if err != nil {
			return nil, err
		}
	} else if len(req.Deltas) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "DELETE mutations must not carry deltas")
	}

	clientTimestamp := time.Now().UTC()
	if req.ClientTimestamp > 0 {
		clientTimestamp = time.UnixMilli(req.ClientTimestamp).UTC()
	}

	mutation, err := models.NewSubmissionMutation(models.SubmissionMutation{
		SurveyID:             req.SurveyID,
		LocationOfInterestID: req.LocationOfInterestID,
		Job:                  job,
		SubmissionID:         req.SubmissionID,
		Type:                 mutationType,
		Deltas:               deltas,
		UserID:               req.UserID,
		ClientTimestamp:      clientTimestamp,
	})
	if err != nil {
		return nil, err
	}

	record := converter.NewRecord(mutation)
	if err := s.outbox.Append(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append mutation")
	}

	if s.trigger != nil {
		if err := s.trigger.TriggerSubmission(record.SubmissionID); err != nil {
			s.logger.Warn("failed to trigger sync for submission",
				zap.String("submission_id", record.SubmissionID), zap.Error(err))
		}
	}

	return record, nil
}

// List returns outbox records matching the query.
func (s *MutationService) List(ctx context.Context, query dto.MutationQuery) ([]models.SubmissionMutationRecord, error) {
	filter := models.MutationFilter{
		Status:               query.Status,
		SubmissionID:         query.SubmissionID,
		LocationOfInterestID: query.LocationOfInterestID,
		Type:                 query.Type,
		Limit:                query.Limit,
		Offset:               query.Offset,
	}
	records, err := s.outbox.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mutations")
	}
	return records, nil
}

// Get returns one outbox record.
func (s *MutationService) Get(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error) {
	record, err := s.outbox.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mutation")
	}
	return record, nil
}

// Retry moves a FAILED record back to PENDING for another attempt. The
// retry count is not reset.
func (s *MutationService) Retry(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error) {
	if err := s.outbox.RetryFailed(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.trigger != nil {
		if err := s.trigger.TriggerSubmission(record.SubmissionID); err != nil {
			s.logger.Warn("failed to trigger sync for submission",
				zap.String("submission_id", record.SubmissionID), zap.Error(err))
		}
	}
	return record, nil
}

// Discard removes a record from the outbox. Discarding an already deleted
// record is a no-op.
func (s *MutationService) Discard(ctx context.Context, id int64) error {
	if err := s.outbox.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard mutation")
	}
	return nil
}

// Stats aggregates row counts per status.
func (s *MutationService) Stats(ctx context.Context) (*models.MutationStats, error) {
	stats, err := s.outbox.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mutation stats")
	}
	return stats, nil
}
