// Package storage hosts uploaded certificate images and hands back the URL
// they are served from.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/pkg/circuitbreaker"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const collaborator = "object_storage"

var (
	ErrInvalidImage = errors.New("image must be a base64 JPEG, PNG or WebP, or an http(s) URL")
	ErrRemoteSource = errors.New("remote images are not accepted by this store")
)

// extensions lists the accepted image types.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Uploader stores an image given as base64 (optionally a data URI) or as an
// http(s) URL and returns the URL it is hosted under.
type Uploader interface {
	Upload(ctx context.Context, image string) (string, error)
}

// source is a parsed upload: either a remote URL or decoded bytes.
type source struct {
	remote string
	mime   string
	data   []byte
}

func parse(image string) (*source, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, ErrInvalidImage
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		u, err := url.Parse(image)
		if err != nil || u.Host == "" {
			return nil, ErrInvalidImage
		}
		return &source{remote: u.String()}, nil
	}

	payload := image
	if strings.HasPrefix(image, "data:") {
		_, p, ok := strings.Cut(image, ",")
		if !ok {
			return nil, ErrInvalidImage
		}
		payload = p
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, ErrInvalidImage
	}
	// The declared type is not trusted; the bytes decide.
	mime := http.DetectContentType(data)
	if _, ok := extensions[mime]; !ok {
		return nil, ErrInvalidImage
	}
	return &source{mime: mime, data: data}, nil
}

func badImage(err error) error {
	return apperrors.BadRequest(err.Error(), err)
}

type localStore struct {
	dir     string
	baseURL string
}

// NewLocalStore keeps uploads in dir and reports them under baseURL, which
// the router serves dir from. Remote URLs are refused so the server never
// fetches on a caller's behalf.
func NewLocalStore(dir, baseURL string) (Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &localStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *localStore) Upload(ctx context.Context, image string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := parse(image)
	if err != nil {
		return "", badImage(err)
	}
	if src.remote != "" {
		return "", badImage(ErrRemoteSource)
	}

	name := uuid.New().String() + extensions[src.mime]
	if err := os.WriteFile(filepath.Join(s.dir, name), src.data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// CloudConfig addresses a Cloudinary-compatible upload API.
type CloudConfig struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	Timeout   time.Duration
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

type cloudStore struct {
	cfg     CloudConfig
	http    *resty.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCloudStore uploads through a signed image upload API. Remote URLs are
// passed through and fetched by the provider.
func NewCloudStore(cfg CloudConfig, log *logger.Logger, m *metrics.Metrics) Uploader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &cloudStore{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        collaborator,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *cloudStore) Upload(ctx context.Context, image string) (string, error) {
	src, err := parse(image)
	if err != nil {
		return "", badImage(err)
	}
	file := src.remote
	if file == "" {
		file = "data:" + src.mime + ";base64," + base64.StdEncoding.EncodeToString(src.data)
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	form := map[string]string{
		"file":      file,
		"api_key":   s.cfg.APIKey,
		"timestamp": timestamp,
		"signature": sign(map[string]string{"folder": s.cfg.Folder, "timestamp": timestamp}, s.cfg.APISecret),
	}
	if s.cfg.Folder != "" {
		form["folder"] = s.cfg.Folder
	}

	start := time.Now()
	var out uploadResponse
	err = s.cb.Execute(func() error {
		resp, err := s.http.R().
			SetContext(ctx).
			SetFormData(form).
			SetResult(&out).
			Post(fmt.Sprintf("/v1_1/%s/image/upload", s.cfg.CloudName))
		if err != nil {
			return fmt.Errorf("failed to call object storage: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("object storage returned %d", resp.StatusCode())
		}
		if out.SecureURL == "" {
			return errors.New("object storage returned no url")
		}
		return nil
	})
	s.metrics.ObserveUpstream(collaborator, start, err)
	if err != nil {
		s.logger.WithContext(ctx).Error(err, "certificate upload failed")
		return "", apperrors.UpstreamUnavailable(collaborator, err)
	}
	return out.SecureURL, nil
}

// sign computes the upload signature: the SHA-1 of the non-empty params
// sorted by name as k=v pairs joined by '&', followed by the secret.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
