package service

import (
	"context"
	"testing"

	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	// 기존 users 테이블 값과 같은 형식
	assert.Equal(t, "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4", HashPassword("1234"))
}

func TestAuthLoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.user(t, "kim", 2)

	_, err := env.svc.Auth.Login(ctx, "kim", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Auth.Login(ctx, "nobody", "kim")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := env.svc.Auth.Login(ctx, "kim", "kim")
	require.NoError(t, err)
	assert.Equal(t, res.AccessToken, res.Token)
	require.NotNil(t, res.User.LastLoginAt)

	claims, err := middleware.ParseToken(testutil.JWTSecret, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "kim", claims.Username)
	assert.Equal(t, 2, claims.Level)
	assert.Equal(t, res.User.ID, claims.UserID)

	pair, err := env.svc.Auth.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	// 한 번 쓴 refresh 토큰은 재사용할 수 없다
	_, err = env.svc.Auth.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.svc.Auth.Logout(ctx, pair.RefreshToken))
	_, err = env.svc.Auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.Auth.Refresh(ctx, res.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
