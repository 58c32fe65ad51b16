package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

type countingStore struct {
	surveys map[string]*models.Survey
	loads   int
}

func (s *countingStore) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	s.loads++
	if survey, ok := s.surveys[id]; ok {
		return survey, nil
	}
	return nil, sql.ErrNoRows
}

type mapCache struct {
	values map[string][]byte
	gets   int
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(c.values, pattern)
	return nil
}

func providerSurvey() *models.Survey {
	return &models.Survey{
		ID:    "survey-1",
		Title: "Forest inventory",
		Jobs: map[string]*models.Job{
			"job-1": {
				ID: "job-1",
				Tasks: map[string]*models.Task{
					"nameField": {ID: "nameField", Type: models.TaskTypeText},
				},
			},
		},
	}
}

func TestProviderCachesLocally(t *testing.T) {
	store := &countingStore{surveys: map[string]*models.Survey{"survey-1": providerSurvey()}}
	provider := NewProvider(store, time.Minute, nil)

	for i := 0; i < 3; i++ {
		survey, err := provider.Survey(context.Background(), "survey-1")
		require.NoError(t, err)
		require.Equal(t, "survey-1", survey.ID)
	}
	require.Equal(t, 1, store.loads)
}

func TestProviderNotFound(t *testing.T) {
	provider := NewProvider(&countingStore{}, time.Minute, nil)

	_, err := provider.Survey(context.Background(), "ghost")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProviderSharedCacheTier(t *testing.T) {
	store := &countingStore{surveys: map[string]*models.Survey{"survey-1": providerSurvey()}}
	shared := newMapCache()
	provider := NewProvider(store, time.Minute, nil, WithSharedCache(shared))

	_, err := provider.Survey(context.Background(), "survey-1")
	require.NoError(t, err)
	require.Equal(t, 1, store.loads)
	require.Contains(t, shared.values, "schema:survey:survey-1")

	// A fresh provider with the same shared tier loads from it, not the store.
	other := NewProvider(store, time.Minute, nil, WithSharedCache(shared))
	survey, err := other.Survey(context.Background(), "survey-1")
	require.NoError(t, err)
	require.Equal(t, "survey-1", survey.ID)
	require.Equal(t, 1, store.loads)
}

func TestProviderInvalidate(t *testing.T) {
	store := &countingStore{surveys: map[string]*models.Survey{"survey-1": providerSurvey()}}
	shared := newMapCache()
	provider := NewProvider(store, time.Minute, nil, WithSharedCache(shared))

	_, err := provider.Survey(context.Background(), "survey-1")
	require.NoError(t, err)

	provider.Invalidate(context.Background(), "survey-1")
	require.NotContains(t, shared.values, "schema:survey:survey-1")

	_, err = provider.Survey(context.Background(), "survey-1")
	require.NoError(t, err)
	require.Equal(t, 2, store.loads)
}

func TestProviderJobSchema(t *testing.T) {
	store := &countingStore{surveys: map[string]*models.Survey{"survey-1": providerSurvey()}}
	provider := NewProvider(store, time.Minute, nil)

	job, err := provider.JobSchema(context.Background(), "survey-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)

	_, err = provider.JobSchema(context.Background(), "survey-1", "job-gone")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}
