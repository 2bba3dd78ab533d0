package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/lifeline-health/donor-api/pkg/circuitbreaker"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const identityProvider = "identity_provider"

var ErrUnknownKey = errors.New("unknown signing key")

// ExternalIdentity is what a verified provider ID token asserts.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier checks ID tokens issued by an external sign-in provider.
type IdentityVerifier interface {
	// Verify returns an error wrapping ErrInvalidToken when the token is
	// rejected; other errors mean the provider's keys could not be fetched.
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

// ExternalConfig describes the provider. For Firebase Authentication the
// issuer is "https://securetoken.google.com/<project>" and the audience is
// the project id.
type ExternalConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	Timeout  time.Duration
	KeysTTL  time.Duration
}

type externalClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

type jwksVerifier struct {
	cfg     ExternalConfig
	http    *resty.Client
	keys    *cache.Cache
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewIdentityVerifier(cfg ExternalConfig, m *metrics.Metrics) IdentityVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.KeysTTL <= 0 {
		cfg.KeysTTL = time.Hour
	}
	return &jwksVerifier{
		cfg:  cfg,
		http: resty.New().SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		keys: cache.New(cfg.KeysTTL, 2*cfg.KeysTTL),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        identityProvider,
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (v *jwksVerifier) Verify(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	var fetchErr error
	claims := &externalClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.key(ctx, kid)
		if err != nil && !errors.Is(err, ErrUnknownKey) {
			fetchErr = err
		}
		return key, err
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: subject and email are required", ErrInvalidToken)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified", ErrInvalidToken)
	}
	return &ExternalIdentity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// key returns the provider's public key for kid, refreshing the key set once
// when kid is not cached.
func (v *jwksVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrUnknownKey
	}
	if k, ok := v.keys.Get(kid); ok {
		return k.(*rsa.PublicKey), nil
	}
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.keys.Get(kid); ok {
		return k.(*rsa.PublicKey), nil
	}
	return nil, ErrUnknownKey
}

func (v *jwksVerifier) refresh(ctx context.Context) error {
	start := time.Now()
	var set jsonWebKeySet
	err := v.cb.Execute(func() error {
		resp, err := v.http.R().SetContext(ctx).SetResult(&set).Get(v.cfg.JWKSURL)
		if err != nil {
			return fmt.Errorf("failed to fetch signing keys: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("signing keys endpoint returned %d", resp.StatusCode())
		}
		return nil
	})
	v.metrics.ObserveUpstream(identityProvider, start, err)
	if err != nil {
		return err
	}

	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			continue
		}
		v.keys.SetDefault(k.Kid, pub)
	}
	return nil
}

func rsaKey(k jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
