package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService interface {
	GenerateAccessToken(account *model.Account) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type Claims struct {
	AccountID uuid.UUID  `json:"account_id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts validated claims into the caller identity.
func (c *Claims) Principal() model.Principal {
	return model.Principal{AccountID: c.AccountID, Email: c.Email, Role: c.Role}
}

type jwtService struct {
	secret []byte
	issuer string
	expiry time.Duration
}

func NewJWTService(secret, issuer string, expiry time.Duration) JWTService {
	return &jwtService{secret: []byte(secret), issuer: issuer, expiry: expiry}
}

func (s *jwtService) GenerateAccessToken(account *model.Account) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   account.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
