package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/models"
)

func newTestManager() *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
}

func testUser() *models.User {
	tenantID := uuid.New()
	return &models.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Role:     models.RoleMember,
		TenantID: &tenantID,
	}
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := newTestManager()
	user := testUser()

	access, refresh, err := m.GenerateTokenPair(user)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleMember, claims.Role)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, *user.TenantID, *claims.TenantID)

	subject, err := m.ParseRefreshSubject(refresh)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	m := newTestManager()
	access, _, err := m.GenerateTokenPair(testUser())
	require.NoError(t, err)

	other := NewJWTManager(&config.JWTConfig{Secret: "other-secret", AccessTokenTTL: time.Minute})
	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	m := NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  -time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	access, _, err := m.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = m.ValidateToken(access)
	assert.Error(t, err)
}

func TestParseRefreshSubject_RejectsAccessToken(t *testing.T) {
	m := newTestManager()
	access, _, err := m.GenerateTokenPair(testUser())
	require.NoError(t, err)

	// An access token must not mint new token pairs
	_, err = m.ParseRefreshSubject(access)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	m := newTestManager()
	_, err := m.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestPrincipalFromClaims_OperatorWithoutTenant(t *testing.T) {
	m := newTestManager()
	operator := &models.User{ID: uuid.New(), Email: "ops@example.com", Role: models.RoleOperator}

	access, _, err := m.GenerateTokenPair(operator)
	require.NoError(t, err)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)

	principal := PrincipalFromClaims(claims)
	assert.True(t, principal.IsOperator())
	assert.Nil(t, principal.TenantID)
}
