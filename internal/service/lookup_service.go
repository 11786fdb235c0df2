package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/mapper"
	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
)

type lookupSource interface {
	Student(ctx context.Context, id int64) (*models.Student, error)
	Label(ctx context.Context, spec catalog.LookupSpec, id int64) (string, error)
}

// LookupService resolves student identities and lookup labels, going through
// the cache when one is configured.
type LookupService struct {
	catalog *catalog.Catalog
	repo    lookupSource
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewLookupService constructs the service. cache may be nil.
func NewLookupService(cat *catalog.Catalog, repo lookupSource, cache *CacheService, ttl time.Duration, logger *zap.Logger) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{catalog: cat, repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Student returns the student identity or a NOT_FOUND error.
func (s *LookupService) Student(ctx context.Context, id int64) (*models.Student, error) {
	key := fmt.Sprintf("student:%d", id)
	var cached models.Student
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	student, err := s.repo.Student(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.cache.Set(ctx, key, student, s.ttl)
	return student, nil
}

// Label returns the label of id in the named lookup table. Unknown lookups and
// missing rows resolve to "".
func (s *LookupService) Label(ctx context.Context, lookup string, id int64) (string, error) {
	spec, ok := s.catalog.Lookup(lookup)
	if !ok || id == 0 {
		return "", nil
	}
	key := fmt.Sprintf("lookup:%s:%d", lookup, id)
	var cached string
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	label, err := s.repo.Label(ctx, spec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	s.cache.Set(ctx, key, label, s.ttl)
	return label, nil
}

// Labeler returns a per-request labeler memoising results. Lookup failures are
// logged and resolve to "".
func (s *LookupService) Labeler(ctx context.Context) mapper.Labeler {
	var mu sync.Mutex
	seen := map[string]string{}
	return mapper.LabelerFunc(func(lookup string, id int64) string {
		key := fmt.Sprintf("%s:%d", lookup, id)
		mu.Lock()
		label, ok := seen[key]
		mu.Unlock()
		if ok {
			return label
		}
		label, err := s.Label(ctx, lookup, id)
		if err != nil {
			s.logger.Warn("lookup label failed", zap.String("lookup", lookup), zap.Int64("id", id), zap.Error(err))
			label = ""
		}
		mu.Lock()
		seen[key] = label
		mu.Unlock()
		return label
	})
}
