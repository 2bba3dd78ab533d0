package eligibility

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/eligibility"
	"github.com/lifeline-health/donor-api/pkg/logger"
)

// Service answers certificate checks, reusing verdicts for identical images
// until ttl expires.
type Service struct {
	checker eligibility.Checker
	cache   *cache.Cache
	logger  *logger.Logger
}

func NewService(checker eligibility.Checker, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		checker: checker,
		cache:   cache.New(ttl, 2*ttl),
		logger:  log,
	}
}

func (s *Service) Check(ctx context.Context, image string) (*model.EligibilityResult, error) {
	if image == "" {
		return nil, apperrors.BadRequest("image is required", nil)
	}

	key := fingerprint(image)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.WithContext(ctx).Debug("eligibility cache hit", "key", key[:12])
		return cached.(*model.EligibilityResult), nil
	}

	result, err := s.checker.Check(ctx, image)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, result)
	return result, nil
}

func fingerprint(image string) string {
	sum := sha256.Sum256([]byte(image))
	return hex.EncodeToString(sum[:])
}
