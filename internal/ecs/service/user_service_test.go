package service

import (
	"context"
	"testing"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUserAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "admin", 5)
	manager := env.user(t, "choi", 3)

	_, err := env.svc.User.List(ctx, manager)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	u, err := env.svc.User.Create(ctx, admin, UserInput{Username: "newbie", FullName: ptr("신입")})
	require.NoError(t, err)
	assert.Equal(t, 1, u.PermissionLevel)
	assert.Equal(t, HashPassword(DefaultPassword), u.PasswordHash)

	_, err = env.svc.User.Create(ctx, admin, UserInput{Username: "newbie"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = env.svc.User.Create(ctx, admin, UserInput{Username: "x", PermissionLevel: ptr(6)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := env.svc.User.Update(ctx, admin, u.ID, UserInput{PermissionLevel: ptr(2), Company: ptr("DSHI")})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PermissionLevel)
	assert.Equal(t, "DSHI", updated.Company)

	require.NoError(t, env.svc.User.Deactivate(ctx, admin, u.ID))
	_, err = env.svc.Auth.Login(ctx, "newbie", DefaultPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, env.svc.User.Deactivate(ctx, admin, admin.UserID), apperr.ErrValidation)
	assert.ErrorIs(t, env.svc.User.DeletePermanently(ctx, admin, admin.UserID), apperr.ErrValidation)

	require.NoError(t, env.svc.User.DeletePermanently(ctx, admin, u.ID))
	assert.ErrorIs(t, env.svc.User.DeletePermanently(ctx, admin, u.ID), apperr.ErrNotFound)

	users, err := env.svc.User.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
