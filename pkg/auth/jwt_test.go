package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", "donor-api", time.Hour)
	account := &model.Account{Role: model.RoleBloodBank, Email: "bank@example.com"}
	account.ID = uuid.New()

	token, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, model.RoleBloodBank, claims.Principal().Role)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	account := &model.Account{Role: model.RoleHospital, Email: "h@example.com"}
	account.ID = uuid.New()

	token, err := NewJWTService("one", "donor-api", time.Hour).GenerateAccessToken(account)
	require.NoError(t, err)

	_, err = NewJWTService("two", "donor-api", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", "donor-api", -time.Minute)
	account := &model.Account{Role: model.RoleNormalUser, Email: "u@example.com"}
	account.ID = uuid.New()

	token, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
