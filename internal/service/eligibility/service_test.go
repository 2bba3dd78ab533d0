package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
)

type countingChecker struct {
	calls  int
	result *model.EligibilityResult
	err    error
}

func (c *countingChecker) Check(context.Context, string) (*model.EligibilityResult, error) {
	c.calls++
	return c.result, c.err
}

func TestCheckCachesIdenticalImages(t *testing.T) {
	checker := &countingChecker{result: &model.EligibilityResult{Eligible: model.VerdictYes}}
	svc := NewService(checker, time.Minute, logger.NewNop())
	ctx := context.Background()

	first, err := svc.Check(ctx, "aGVsbG8=")
	require.NoError(t, err)
	second, err := svc.Check(ctx, "aGVsbG8=")
	require.NoError(t, err)
	_, err = svc.Check(ctx, "d29ybGQ=")
	require.NoError(t, err)

	assert.Equal(t, model.VerdictYes, first.Eligible)
	assert.Same(t, first, second)
	assert.Equal(t, 2, checker.calls)
}

func TestCheckDoesNotCacheFailures(t *testing.T) {
	checker := &countingChecker{err: apperrors.UpstreamUnavailable("eligibility", errors.New("timeout"))}
	svc := NewService(checker, time.Minute, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Check(ctx, "aGVsbG8=")
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstreamUnavailable))
	_, err = svc.Check(ctx, "aGVsbG8=")
	assert.Error(t, err)
	assert.Equal(t, 2, checker.calls)
}

func TestCheckRequiresImage(t *testing.T) {
	svc := NewService(&countingChecker{}, time.Minute, logger.NewNop())
	_, err := svc.Check(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
