// Package eligibility asks a generative vision model whether a medical
// certificate shows the holder may donate.
package eligibility

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/circuitbreaker"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const collaborator = "eligibility"

const prompt = `You are reviewing a medical certificate for blood donation eligibility.
Answer with a single JSON object and nothing else:
{"eligible": "yes" or "no", "reason": "<short reason>", "extracted_fields": {"<field>": "<value>"}}
Extract fields such as name, age, blood_group, hemoglobin and issue_date when present.`

var ErrInvalidImage = errors.New("image is not valid base64")

type Checker interface {
	Check(ctx context.Context, image string) (*model.EligibilityResult, error)
}

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type client struct {
	http    *resty.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) Checker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", cfg.APIKey),
		model: cfg.Model,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        collaborator,
			MaxFailures: 3,
			Timeout:     time.Minute,
		}),
		logger:  log,
		metrics: m,
	}
}

func (c *client) Check(ctx context.Context, image string) (*model.EligibilityResult, error) {
	mime, data, err := SplitImage(image)
	if err != nil {
		return nil, apperrors.BadRequest("invalid certificate image", err)
	}

	body := generateRequest{Contents: []content{{Parts: []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: mime, Data: data}},
	}}}}

	start := time.Now()
	var out generateResponse
	err = c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
		if err != nil {
			return fmt.Errorf("failed to call eligibility model: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("eligibility model returned %d", resp.StatusCode())
		}
		return nil
	})
	c.metrics.ObserveUpstream(collaborator, start, err)
	if err != nil {
		c.logger.WithContext(ctx).Error(err, "eligibility check failed")
		return nil, apperrors.UpstreamUnavailable(collaborator, err)
	}

	var text string
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = out.Candidates[0].Content.Parts[0].Text
	}
	return ParseAnswer(text), nil
}

// SplitImage strips an optional data URI header and returns the mime type
// and the bare base64 payload.
func SplitImage(image string) (string, string, error) {
	mime := "image/jpeg"
	data := strings.TrimSpace(image)
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return "", "", ErrInvalidImage
		}
		if m, _, found := strings.Cut(strings.TrimPrefix(header, "data:"), ";"); found && m != "" {
			mime = m
		}
		data = payload
	}
	if data == "" {
		return "", "", ErrInvalidImage
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", ErrInvalidImage
	}
	return mime, data, nil
}

// ParseAnswer reads the model's JSON verdict. Free text falls back to a
// plain yes/no reading; anything unclear is "no".
func ParseAnswer(text string) *model.EligibilityResult {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Eligible        string            `json:"eligible"`
		Reason          string            `json:"reason"`
		ExtractedFields map[string]string `json:"extracted_fields"`
	}
	result := &model.EligibilityResult{Eligible: model.VerdictNo, ExtractedFields: map[string]string{}}

	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		if strings.EqualFold(strings.TrimSpace(parsed.Eligible), "yes") {
			result.Eligible = model.VerdictYes
		}
		result.Reason = parsed.Reason
		if parsed.ExtractedFields != nil {
			result.ExtractedFields = parsed.ExtractedFields
		}
		return result
	}

	lower := strings.ToLower(cleaned)
	if strings.HasPrefix(lower, "yes") {
		result.Eligible = model.VerdictYes
	}
	return result
}
