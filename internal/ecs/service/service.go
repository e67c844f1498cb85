package service

import (
	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
)

// SearchCachePrefix 조립품 검색 캐시 네임스페이스
const SearchCachePrefix = "search:assemblies"

// Services 데이터 API 서비스 모음
type Services struct {
	Auth       *AuthService
	Assembly   *AssemblyService
	SavedList  *SavedListService
	Inspection *InspectionService
	User       *UserService
}

// NewServices archiver는 nil이면 업로드 원본을 보관하지 않는다
func NewServices(repos *repository.Repositories, store cache.Cache, hub *sse.Hub, archiver Archiver, cfg *config.Config, logger *zap.Logger) *Services {
	searchCache := cache.NewNamespace(store, SearchCachePrefix, cfg.Search.CacheTTL)
	assembly := NewAssemblyService(repos.Assembly, repos.Inspection, searchCache, cfg.Search.Limit, logger)

	return &Services{
		Auth:       NewAuthService(repos.User, store, cfg, logger),
		Assembly:   assembly,
		SavedList:  NewSavedListService(repos.SavedList, repos.Assembly, hub, archiver, cfg.Upload.MaxCodes, logger),
		Inspection: NewInspectionService(repos, assembly, hub, logger),
		User:       NewUserService(repos.User, logger),
	}
}
