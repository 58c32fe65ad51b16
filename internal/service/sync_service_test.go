package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/internal/remote"
	"github.com/noah-isme/fieldsync/internal/repository"
	"github.com/noah-isme/fieldsync/pkg/config"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

// fakeOutbox is an in-memory stand-in for the mutation repository with the
// same claim and status transition semantics.
type fakeOutbox struct {
	mu      sync.Mutex
	nextID  int64
	records []*models.SubmissionMutationRecord
}

func (f *fakeOutbox) add(record models.SubmissionMutationRecord) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	record.ID = f.nextID
	if record.SyncStatus == "" {
		record.SyncStatus = models.SyncStatusPending
	}
	record.UpdatedAt = time.Now().UTC().UnixMilli()
	copied := record
	f.records = append(f.records, &copied)
	return record.ID
}

func (f *fakeOutbox) get(id int64) *models.SubmissionMutationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.ID == id {
			copied := *record
			return &copied
		}
	}
	return nil
}

func (f *fakeOutbox) ClaimNextPending(ctx context.Context, submissionID string) (*models.SubmissionMutationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *models.SubmissionMutationRecord
	for _, record := range f.records {
		if record.SubmissionID != submissionID {
			continue
		}
		if record.SyncStatus == models.SyncStatusInProgress {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already has an in-flight mutation")
		}
		if record.SyncStatus != models.SyncStatusPending {
			continue
		}
		if oldest == nil || record.ClientTimestamp < oldest.ClientTimestamp ||
			(record.ClientTimestamp == oldest.ClientTimestamp && record.ID < oldest.ID) {
			oldest = record
		}
	}
	if oldest == nil {
		return nil, sql.ErrNoRows
	}
	oldest.SyncStatus = models.SyncStatusInProgress
	copied := *oldest
	return &copied, nil
}

func (f *fakeOutbox) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.ID != params.ID {
			continue
		}
		record.SyncStatus = params.Status
		record.UpdatedAt = time.Now().UTC().UnixMilli()
		if params.RetryCount != nil {
			record.RetryCount = *params.RetryCount
		}
		if params.LastError != nil {
			lastError := *params.LastError
			record.LastError = &lastError
		} else if params.ClearError {
			record.LastError = nil
		}
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeOutbox) PendingSubmissionIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldest := map[string]int64{}
	for _, record := range f.records {
		if record.SyncStatus != models.SyncStatusPending {
			continue
		}
		if ts, ok := oldest[record.SubmissionID]; !ok || record.ClientTimestamp < ts {
			oldest[record.SubmissionID] = record.ClientTimestamp
		}
	}
	ids := make([]string, 0, len(oldest))
	for id := range oldest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return oldest[ids[i]] < oldest[ids[j]] })
	return ids, nil
}

func (f *fakeOutbox) ResetInFlight(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, record := range f.records {
		if record.SyncStatus == models.SyncStatusInProgress {
			record.SyncStatus = models.SyncStatusPending
			count++
		}
	}
	return count, nil
}

func (f *fakeOutbox) DeletePendingBySubmission(ctx context.Context, submissionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var dropped int64
	for _, record := range f.records {
		if record.SubmissionID == submissionID && record.SyncStatus == models.SyncStatusPending {
			dropped++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return dropped, nil
}

func (f *fakeOutbox) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var purged int64
	for _, record := range f.records {
		if record.SyncStatus == models.SyncStatusCompleted && record.UpdatedAt < cutoff.UnixMilli() {
			purged++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return purged, nil
}

func (f *fakeOutbox) Stats(ctx context.Context) (*models.MutationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.MutationStats{}
	for _, record := range f.records {
		switch record.SyncStatus {
		case models.SyncStatusPending:
			stats.Pending++
		case models.SyncStatusInProgress:
			stats.InProgress++
		case models.SyncStatusCompleted:
			stats.Completed++
		case models.SyncStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type staticSchemas struct {
	survey *models.Survey
}

func (s staticSchemas) Survey(ctx context.Context, surveyID string) (*models.Survey, error) {
	if s.survey != nil && s.survey.ID == surveyID {
		return s.survey, nil
	}
	return nil, appErrors.ErrNotFound
}

// failingStore fails submission writes with a fixed error.
type failingStore struct {
	remote.Store
	err error
}

func (f *failingStore) PutSubmission(ctx context.Context, surveyID string, doc remote.Document) error {
	return f.err
}

func (f *failingStore) ApplySubmissionDeltas(ctx context.Context, surveyID, id string, set map[string]interface{}, clear []string) error {
	return f.err
}

func syncTestSurvey() *models.Survey {
	return &models.Survey{
		ID:    "survey-1",
		Title: "Forest inventory",
		Jobs: map[string]*models.Job{
			"job-1": {
				ID: "job-1",
				Tasks: map[string]*models.Task{
					"nameField":   {ID: "nameField", Type: models.TaskTypeText},
					"heightField": {ID: "heightField", Type: models.TaskTypeNumber},
				},
			},
		},
	}
}

func pendingRecord(submissionID string, mutationType models.MutationType, deltas string, clientTimestamp int64) models.SubmissionMutationRecord {
	record := models.SubmissionMutationRecord{
		SurveyID:             "survey-1",
		LocationOfInterestID: "loi-1",
		JobID:                "job-1",
		SubmissionID:         submissionID,
		Type:                 mutationType,
		SyncStatus:           models.SyncStatusPending,
		ClientTimestamp:      clientTimestamp,
	}
	if mutationType != models.MutationTypeDelete {
		record.ResponseDeltas = &deltas
	}
	userID := "user-1"
	record.UserID = &userID
	return record
}

func newSyncTestService(outbox *fakeOutbox, store remote.Store) *SyncService {
	return NewSyncService(outbox, staticSchemas{survey: syncTestSurvey()}, store, NewMetricsService(), nil, config.SyncConfig{
		Concurrency: 2,
		MaxRetries:  5,
		Interval:    time.Minute,
	})
}

func TestSyncServiceAppliesCreate(t *testing.T) {
	outbox := &fakeOutbox{}
	store := remote.NewMemoryStore()
	id := outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak","heightField":12.5}`, 1000))

	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RunOnce(context.Background()))

	record := outbox.get(id)
	require.Equal(t, models.SyncStatusCompleted, record.SyncStatus)
	require.Nil(t, record.LastError)

	doc, err := store.GetSubmission(context.Background(), "survey-1", "sub-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", doc.Fields["jobId"])
	data := doc.Fields["data"].(map[string]interface{})
	require.Equal(t, "Oak", data["nameField"])
	require.Equal(t, 12.5, data["heightField"])

	snapshot := svc.metrics.Snapshot()
	require.Equal(t, uint64(1), snapshot.Applied)
	require.NotNil(t, snapshot.LastRunAt)
}

func TestSyncServiceUpdateClearsField(t *testing.T) {
	outbox := &fakeOutbox{}
	store := remote.NewMemoryStore()
	outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak","heightField":12.5}`, 1000))
	outbox.add(pendingRecord("sub-1", models.MutationTypeUpdate, `{"nameField":null}`, 2000))

	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RunOnce(context.Background()))

	doc, err := store.GetSubmission(context.Background(), "survey-1", "sub-1")
	require.NoError(t, err)
	data := doc.Fields["data"].(map[string]interface{})
	require.NotContains(t, data, "nameField")
	require.Equal(t, 12.5, data["heightField"])
}

func TestSyncServiceOrderingWithinSubmission(t *testing.T) {
	outbox := &fakeOutbox{}
	store := remote.NewMemoryStore()
	outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000))
	outbox.add(pendingRecord("sub-1", models.MutationTypeUpdate, `{"nameField":"Pine"}`, 2000))
	outbox.add(pendingRecord("sub-1", models.MutationTypeUpdate, `{"nameField":"Fir"}`, 3000))

	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RunOnce(context.Background()))

	doc, err := store.GetSubmission(context.Background(), "survey-1", "sub-1")
	require.NoError(t, err)
	require.Equal(t, "Fir", doc.Fields["data"].(map[string]interface{})["nameField"])
}

func TestSyncServiceRetryableFailureBacksOff(t *testing.T) {
	outbox := &fakeOutbox{}
	id := outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000))

	store := &failingStore{Store: remote.NewMemoryStore(), err: fmt.Errorf("connection reset")}
	svc := newSyncTestService(outbox, store)

	for attempt := 1; attempt <= 4; attempt++ {
		require.NoError(t, svc.RunOnce(context.Background()))
		record := outbox.get(id)
		require.Equal(t, models.SyncStatusPending, record.SyncStatus)
		require.Equal(t, int64(attempt), record.RetryCount)
		require.NotNil(t, record.LastError)
	}

	// The fifth failure crosses the retry ceiling.
	require.NoError(t, svc.RunOnce(context.Background()))
	record := outbox.get(id)
	require.Equal(t, models.SyncStatusFailed, record.SyncStatus)
	require.Equal(t, int64(5), record.RetryCount)
	require.Contains(t, *record.LastError, "connection reset")
}

func TestSyncServiceNonRetryableFailsImmediately(t *testing.T) {
	outbox := &fakeOutbox{}
	store := remote.NewMemoryStore()
	// Deltas recorded against a task the schema no longer has.
	badID := outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"ghostField":"boo"}`, 1000))
	goodID := outbox.add(pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 2000))

	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RunOnce(context.Background()))

	bad := outbox.get(badID)
	require.Equal(t, models.SyncStatusFailed, bad.SyncStatus)
	require.Zero(t, bad.RetryCount)
	require.NotNil(t, bad.LastError)

	// The failed record does not block later records of the submission.
	require.Equal(t, models.SyncStatusCompleted, outbox.get(goodID).SyncStatus)
}

func TestSyncServiceUnknownSurveyFailsPermanently(t *testing.T) {
	outbox := &fakeOutbox{}
	record := pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000)
	record.SurveyID = "survey-gone"
	id := outbox.add(record)

	svc := newSyncTestService(outbox, remote.NewMemoryStore())
	require.NoError(t, svc.RunOnce(context.Background()))

	got := outbox.get(id)
	require.Equal(t, models.SyncStatusFailed, got.SyncStatus)
	require.Zero(t, got.RetryCount)
}

func TestSyncServiceDeleteMootsLaterPending(t *testing.T) {
	outbox := &fakeOutbox{}
	store := remote.NewMemoryStore()
	require.NoError(t, store.PutSubmission(context.Background(), "survey-1", remote.Document{
		ID: "sub-1", Fields: map[string]interface{}{"jobId": "job-1"},
	}))

	deleteID := outbox.add(pendingRecord("sub-1", models.MutationTypeDelete, "", 1000))
	mootedID := outbox.add(pendingRecord("sub-1", models.MutationTypeUpdate, `{"nameField":"Pine"}`, 2000))

	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RunOnce(context.Background()))

	require.Equal(t, models.SyncStatusCompleted, outbox.get(deleteID).SyncStatus)
	require.Nil(t, outbox.get(mootedID))

	_, err := store.GetSubmission(context.Background(), "survey-1", "sub-1")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSyncServiceRecoverInFlight(t *testing.T) {
	outbox := &fakeOutbox{}
	stranded := pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000)
	stranded.SyncStatus = models.SyncStatusInProgress
	id := outbox.add(stranded)

	store := remote.NewMemoryStore()
	svc := newSyncTestService(outbox, store)
	require.NoError(t, svc.RecoverInFlight(context.Background()))
	require.Equal(t, models.SyncStatusPending, outbox.get(id).SyncStatus)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Equal(t, models.SyncStatusCompleted, outbox.get(id).SyncStatus)
}

func TestSyncServiceClaimConflictSkipsSubmission(t *testing.T) {
	outbox := &fakeOutbox{}
	inFlight := pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000)
	inFlight.SyncStatus = models.SyncStatusInProgress
	outbox.add(inFlight)
	outbox.add(pendingRecord("sub-1", models.MutationTypeUpdate, `{"nameField":"Pine"}`, 2000))

	svc := newSyncTestService(outbox, remote.NewMemoryStore())
	require.NoError(t, svc.DrainSubmission(context.Background(), "sub-1"))

	// Nothing was claimed while another worker holds the submission.
	stats, err := outbox.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Pending)
	require.Equal(t, int64(1), stats.InProgress)
}

func TestSyncServicePurgeCompleted(t *testing.T) {
	outbox := &fakeOutbox{}
	completed := pendingRecord("sub-1", models.MutationTypeCreate, `{"nameField":"Oak"}`, 1000)
	completed.SyncStatus = models.SyncStatusCompleted
	id := outbox.add(completed)
	// Age the record past the retention window.
	outbox.mu.Lock()
	outbox.records[0].UpdatedAt = time.Now().Add(-48 * time.Hour).UnixMilli()
	outbox.mu.Unlock()

	svc := NewSyncService(outbox, staticSchemas{survey: syncTestSurvey()}, remote.NewMemoryStore(), nil, nil, config.SyncConfig{
		RetentionTTL: 24 * time.Hour,
	})
	purged, err := svc.PurgeCompleted(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
	require.Nil(t, outbox.get(id))
}
