// Package matching talks to the donor-matching service.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/circuitbreaker"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const collaborator = "matching"

type Client interface {
	MatchBlood(ctx context.Context, bloodGroup string, location model.Location) ([]model.Donor, error)
	MatchOrgan(ctx context.Context, organType string, location model.Location) ([]model.Donor, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type bloodQuery struct {
	BloodGroup string         `json:"blood_group"`
	Location   model.Location `json:"location"`
}

type organQuery struct {
	OrganType string         `json:"organ_type"`
	Location  model.Location `json:"location"`
}

type donorsResponse struct {
	Donors []model.Donor `json:"donors"`
}

type client struct {
	http    *resty.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &client{
		http: httpClient,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        collaborator,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  log,
		metrics: m,
	}
}

func (c *client) MatchBlood(ctx context.Context, bloodGroup string, location model.Location) ([]model.Donor, error) {
	return c.match(ctx, "/blood", bloodQuery{BloodGroup: bloodGroup, Location: location})
}

func (c *client) MatchOrgan(ctx context.Context, organType string, location model.Location) ([]model.Donor, error) {
	return c.match(ctx, "/organ", organQuery{OrganType: organType, Location: location})
}

func (c *client) match(ctx context.Context, path string, body interface{}) ([]model.Donor, error) {
	start := time.Now()
	var result donorsResponse

	err := c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&result).
			Post(path)
		if err != nil {
			return fmt.Errorf("failed to call matching service: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("matching service returned %d", resp.StatusCode())
		}
		return nil
	})
	c.metrics.ObserveUpstream(collaborator, start, err)

	if err != nil {
		c.logger.WithContext(ctx).Error(err, "donor matching failed", "path", path)
		return nil, apperrors.UpstreamUnavailable(collaborator, err)
	}
	if result.Donors == nil {
		result.Donors = []model.Donor{}
	}
	return result.Donors, nil
}
