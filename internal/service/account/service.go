package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	"github.com/lifeline-health/donor-api/pkg/auth"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/security"
)

var errInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store    repository.Store
	hasher   security.PasswordHasher
	jwtSvc   auth.JWTService
	verifier auth.IdentityVerifier
	logger   *logger.Logger
}

// NewService builds the account service. A nil verifier disables external
// sign-in and sign-up.
func NewService(store repository.Store, hasher security.PasswordHasher, jwtSvc auth.JWTService,
	verifier auth.IdentityVerifier, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		jwtSvc:   jwtSvc,
		verifier: verifier,
		logger:   log,
	}
}

// SignUp registers an account and signs it in. External sign-up is only
// accepted for NormalUser, needs a verified provider token for the same
// email and stores no password.
func (s *Service) SignUp(ctx context.Context, req model.SignUpRequest) (*model.TokenResponse, error) {
	if !req.Role.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown role %q", req.Role), nil)
	}
	if req.External && req.Role != model.RoleNormalUser {
		return nil, apperrors.BadRequest("external sign-up is only available to NormalUser", nil)
	}

	account := &model.Account{
		Role:     req.Role,
		Name:     req.Name,
		Email:    normalizeEmail(req.Email),
		External: req.External,
	}
	if req.External {
		identity, err := s.verify(ctx, req.IDToken)
		if err != nil {
			return nil, err
		}
		if normalizeEmail(identity.Email) != account.Email {
			return nil, apperrors.BadRequest("email does not match the signed-in identity", nil)
		}
	} else {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			if errors.Is(err, security.ErrPasswordTooShort) {
				return nil, apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
			}
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		account.PasswordHash = hash
	}
	if profileProvided(req.Profile) {
		req.Profile.Apply(account)
		account.ProfileCompleted = true
	}

	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.WithContext(ctx).Info("account created",
		"account_id", account.ID.String(),
		"role", string(account.Role),
		"external", account.External,
	)
	return s.issue(account)
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	account, err := s.store.Accounts().GetByEmailAndRole(ctx, normalizeEmail(req.Email), req.Role)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(errInvalidCredentials)
		}
		return nil, err
	}
	if account.External {
		return nil, apperrors.Unauthorized(errInvalidCredentials)
	}
	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		s.logger.WithContext(ctx).Warn("login rejected", "account_id", account.ID.String())
		return nil, apperrors.Unauthorized(errInvalidCredentials)
	}
	return s.issue(account)
}

// ExternalSignIn signs in the NormalUser named by a verified provider token,
// creating it on first sight. Accounts registered with a password never sign
// in this way.
func (s *Service) ExternalSignIn(ctx context.Context, req model.ExternalSignInRequest) (*model.TokenResponse, error) {
	identity, err := s.verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(identity.Email)
	account, err := s.store.Accounts().GetByEmailAndRole(ctx, email, model.RoleNormalUser)
	switch {
	case err == nil:
		if !account.External {
			return nil, apperrors.Conflict("account signs in with a password")
		}
		return s.issue(account)
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	name := identity.Name
	if name == "" {
		name = email
	}
	account = &model.Account{
		Role:     model.RoleNormalUser,
		Name:     name,
		Email:    email,
		External: true,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.WithContext(ctx).Info("external account created", "account_id", account.ID.String())
	return s.issue(account)
}

func (s *Service) verify(ctx context.Context, idToken string) (*auth.ExternalIdentity, error) {
	if s.verifier == nil {
		return nil, apperrors.Forbidden("external sign-in is not enabled")
	}
	identity, err := s.verifier.Verify(ctx, idToken)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, apperrors.Unauthorized(err)
	}
	if err != nil {
		return nil, apperrors.UpstreamUnavailable("identity provider", err)
	}
	return identity, nil
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return s.store.Accounts().Get(ctx, id)
}

// UpdateProfile applies the non-nil fields and marks the profile complete.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req model.ProfileRequest) (*model.Account, error) {
	account, err := s.store.Accounts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(account)
	account.ProfileCompleted = true

	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Profile returns the caller's account for a role-specific dashboard.
func (s *Service) Profile(ctx context.Context, id uuid.UUID, role model.Role) (*model.Account, error) {
	account, err := s.store.Accounts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Role != role {
		return nil, apperrors.Forbidden(fmt.Sprintf("account is not a %s", role))
	}
	return account, nil
}

func (s *Service) issue(account *model.Account) (*model.TokenResponse, error) {
	token, err := s.jwtSvc.GenerateAccessToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.TokenResponse{AccessToken: token, Account: account}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func profileProvided(p model.ProfileRequest) bool {
	return p.Age != nil || p.Sex != nil || p.BloodGroup != nil || p.Phone != nil ||
		p.Location != nil || p.CanDonateBlood != nil || p.CanDonateOrgan != nil
}
