package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfi/backend/internal/infrastructure/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
		MaxRefreshCount:        10,
	}
}

// sharedSecretService signs both token types with one secret so type
// confusion can be exercised.
func sharedSecretService() *JWTService {
	cfg := testJWTConfig()
	cfg.RefreshSecret = cfg.Secret
	return NewJWTService(cfg)
}

func newTestInput() GenerateTokenInput {
	branchID := uuid.New()
	return GenerateTokenInput{
		UserID:      uuid.New(),
		BranchID:    &branchID,
		Username:    "loan-officer",
		RoleIDs:     []uuid.UUID{uuid.New(), uuid.New()},
		Permissions: []string{"loan:read", "loan:create", "approval:decide"},
	}
}

func TestNewJWTService(t *testing.T) {
	t.Run("copies configuration", func(t *testing.T) {
		cfg := testJWTConfig()
		svc := NewJWTService(cfg)

		assert.Equal(t, []byte(cfg.Secret), svc.accessSecret)
		assert.Equal(t, []byte(cfg.RefreshSecret), svc.refreshSecret)
		assert.Equal(t, cfg.AccessTokenExpiration, svc.accessExpiration)
		assert.Equal(t, cfg.RefreshTokenExpiration, svc.refreshExpiration)
		assert.Equal(t, cfg.Issuer, svc.issuer)
		assert.Equal(t, cfg.MaxRefreshCount, svc.maxRefreshCount)
	})

	t.Run("empty refresh secret falls back to access secret", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.RefreshSecret = ""

		svc := NewJWTService(cfg)
		assert.Equal(t, []byte(cfg.Secret), svc.refreshSecret)
	})
}

func TestGenerateTokenPair(t *testing.T) {
	svc := NewJWTService(testJWTConfig())
	input := newTestInput()

	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.AccessTokenExpiresAt.After(time.Now()))
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))
}

func TestValidateAccessToken(t *testing.T) {
	t.Run("round trips the minted identity", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())
		input := newTestInput()

		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Equal(t, input.BranchID.String(), claims.BranchID)
		assert.Equal(t, input.Username, claims.Username)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
		assert.Len(t, claims.RoleIDs, len(input.RoleIDs))
		assert.Equal(t, input.Permissions, claims.Permissions)
		assert.NotEmpty(t, claims.ID)
		assert.False(t, claims.GetIssuedAtTime().IsZero())
	})

	t.Run("expired token", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.AccessTokenExpiration = -1 * time.Hour
		svc := NewJWTService(cfg)

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())

		_, err := svc.ValidateAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token rejected by type", func(t *testing.T) {
		svc := sharedSecretService()

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		minter := NewJWTService(testJWTConfig())
		pair, err := minter.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		other := testJWTConfig()
		other.Secret = "a-completely-different-32-char-key"
		verifier := NewJWTService(other)

		_, err = verifier.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateRefreshToken(t *testing.T) {
	t.Run("carries identity but never permissions", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())
		input := newTestInput()

		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)

		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Equal(t, input.BranchID.String(), claims.BranchID)
		assert.Equal(t, TokenTypeRefresh, claims.TokenType)
		assert.Equal(t, 0, claims.RefreshCount)
		assert.Empty(t, claims.Permissions)
		assert.Empty(t, claims.RoleIDs)
	})

	t.Run("access token rejected by type", func(t *testing.T) {
		svc := sharedSecretService()

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		_, err = svc.ValidateRefreshToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})
}

func TestRefreshTokenPair(t *testing.T) {
	t.Run("rotates both tokens and swaps in current permissions", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		newPermissions := []string{"loan:read"}
		newPair, err := svc.RefreshTokenPair(pair.RefreshToken, newPermissions)
		require.NoError(t, err)

		assert.NotEqual(t, pair.AccessToken, newPair.AccessToken)
		assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

		claims, err := svc.ValidateAccessToken(newPair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, newPermissions, claims.Permissions)
	})

	t.Run("increments the refresh count", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		for want := 1; want <= 2; want++ {
			pair, err = svc.RefreshTokenPair(pair.RefreshToken, nil)
			require.NoError(t, err)

			claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, want, claims.RefreshCount)
		}
	})

	t.Run("refuses once the rotation limit is reached", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.MaxRefreshCount = 2
		svc := NewJWTService(cfg)

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		pair, err = svc.RefreshTokenPair(pair.RefreshToken, nil)
		require.NoError(t, err)
		pair, err = svc.RefreshTokenPair(pair.RefreshToken, nil)
		require.NoError(t, err)

		_, err = svc.RefreshTokenPair(pair.RefreshToken, nil)
		assert.ErrorIs(t, err, ErrMaxRefreshExceeded)
	})

	t.Run("invalid token", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())

		_, err := svc.RefreshTokenPair("not-a-jwt", nil)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		svc := sharedSecretService()

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		_, err = svc.RefreshTokenPair(pair.AccessToken, nil)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})
}

func TestClaims_Permissions(t *testing.T) {
	claims := &Claims{
		Permissions: []string{"loan:read", "loan:create", "borrower:read"},
	}

	assert.True(t, claims.HasPermission("loan:read"))
	assert.False(t, claims.HasPermission("loan:delete"))

	assert.True(t, claims.HasAnyPermission("loan:delete", "loan:create"))
	assert.False(t, claims.HasAnyPermission("loan:delete", "borrower:delete"))
	assert.False(t, claims.HasAnyPermission())
}

func TestClaims_GetRemainingTTL(t *testing.T) {
	t.Run("live token has positive TTL", func(t *testing.T) {
		svc := NewJWTService(testJWTConfig())

		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		ttl := claims.GetRemainingTTL()
		assert.Greater(t, ttl, 14*time.Minute)
		assert.LessOrEqual(t, ttl, 15*time.Minute)
	})

	t.Run("missing expiry reports zero", func(t *testing.T) {
		claims := &Claims{}
		assert.Equal(t, time.Duration(0), claims.GetRemainingTTL())
	})
}

func TestGetAccessTokenExpiration(t *testing.T) {
	svc := NewJWTService(testJWTConfig())
	assert.Equal(t, 15*time.Minute, svc.GetAccessTokenExpiration())
}
