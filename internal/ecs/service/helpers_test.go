package service

import (
	"testing"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	hub   *sse.Hub
	store *cache.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	store := cache.NewMemory()
	return &testEnv{
		db:    db,
		repos: repos,
		svc:   NewServices(repos, store, hub, nil, testutil.TestConfig(), zap.NewNop()),
		hub:   hub,
		store: store,
	}
}

func (e *testEnv) user(t *testing.T, username string, level int) lifecycle.Actor {
	t.Helper()
	u := testutil.SeedUser(t, e.db, username, level, HashPassword(username))
	return actorOf(u)
}

func actorOf(u *entity.User) lifecycle.Actor {
	return lifecycle.Actor{
		UserID:   u.ID,
		Username: u.Username,
		Name:     u.FullName,
		Level:    lifecycle.Level(u.PermissionLevel),
	}
}
