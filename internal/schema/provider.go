package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

type surveyStore interface {
	GetByID(ctx context.Context, id string) (*models.Survey, error)
}

type sharedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Provider resolves survey schemas for delta decoding. Lookups go through an
// in-process TTL cache, then the optional shared Redis tier, then the local
// survey store; concurrent loads of the same survey are deduplicated.
type Provider struct {
	surveys surveyStore
	local   *gocache.Cache
	shared  sharedCache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithSharedCache attaches the Redis tier.
func WithSharedCache(cache sharedCache) ProviderOption {
	return func(p *Provider) {
		if cache != nil {
			p.shared = cache
		}
	}
}

// NewProvider constructs the provider.
func NewProvider(surveys surveyStore, ttl time.Duration, logger *zap.Logger, opts ...ProviderOption) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	p := &Provider{
		surveys: surveys,
		local:   gocache.New(ttl, time.Minute),
		ttl:     ttl,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Survey resolves a survey schema, or ErrNotFound when no such survey is
// known locally.
func (p *Provider) Survey(ctx context.Context, surveyID string) (*models.Survey, error) {
	if cached, ok := p.local.Get(surveyID); ok {
		if survey, ok := cached.(*models.Survey); ok {
			return survey, nil
		}
	}

	result, err, _ := p.group.Do(surveyID, func() (interface{}, error) {
		return p.load(ctx, surveyID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Survey), nil
}

// JobSchema resolves one job's field schema. Not-found drives the local
// data consistency path in the converter.
func (p *Provider) JobSchema(ctx context.Context, surveyID, jobID string) (*models.Job, error) {
	survey, err := p.Survey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	job, ok := survey.Job(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %q not in survey %s", jobID, surveyID))
	}
	return job, nil
}

// Invalidate drops cached copies of a survey after a schema import.
func (p *Provider) Invalidate(ctx context.Context, surveyID string) {
	p.local.Delete(surveyID)
	if p.shared != nil {
		if err := p.shared.DeleteByPattern(ctx, sharedKey(surveyID)); err != nil {
			p.logger.Warn("failed to invalidate shared schema cache", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}
}

func (p *Provider) load(ctx context.Context, surveyID string) (*models.Survey, error) {
	if p.shared != nil {
		var survey models.Survey
		err := p.shared.Get(ctx, sharedKey(surveyID), &survey)
		if err == nil {
			p.local.Set(surveyID, &survey, p.ttl)
			return &survey, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			p.logger.Warn("shared schema cache read failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}

	survey, err := p.surveys.GetByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("survey %s not found", surveyID))
		}
		return nil, fmt.Errorf("load survey %s: %w", surveyID, err)
	}

	p.local.Set(surveyID, survey, p.ttl)
	if p.shared != nil {
		if err := p.shared.Set(ctx, sharedKey(surveyID), survey, p.ttl); err != nil {
			p.logger.Warn("shared schema cache write failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}
	return survey, nil
}

func sharedKey(surveyID string) string {
	return "schema:survey:" + surveyID
}
