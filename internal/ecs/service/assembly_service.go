package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
)

// AssemblyService 조립품 검색과 대시보드 통계
type AssemblyService struct {
	repo    *repository.AssemblyRepository
	inspect *repository.InspectionRepository
	cache   *cache.Namespace
	limit   int
	logger  *zap.Logger
}

func NewAssemblyService(repo *repository.AssemblyRepository, inspect *repository.InspectionRepository, searchCache *cache.Namespace, limit int, logger *zap.Logger) *AssemblyService {
	return &AssemblyService{
		repo:    repo,
		inspect: inspect,
		cache:   searchCache,
		limit:   limit,
		logger:  logger.Named("assembly"),
	}
}

// Search 결과는 검색어 기준으로 잠깐 캐시한다
func (s *AssemblyService) Search(ctx context.Context, q string) ([]entity.AssemblyView, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("검색어를 입력하세요")
	}

	key := strings.ToUpper(q)
	var views []entity.AssemblyView
	if ok, err := s.cache.Get(ctx, &views, key); err == nil && ok {
		return views, nil
	} else if err != nil {
		s.logger.Warn("search cache get", zap.Error(err))
	}

	items, err := s.repo.Search(ctx, q, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search assemblies: %w", err)
	}
	views = make([]entity.AssemblyView, 0, len(items))
	for i := range items {
		views = append(views, items[i].View())
	}

	if err := s.cache.Set(ctx, views, key); err != nil {
		s.logger.Warn("search cache set", zap.Error(err))
	}
	return views, nil
}

// InvalidateSearch 공정 날짜가 바뀌면 호출
func (s *AssemblyService) InvalidateSearch(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("search cache invalidate", zap.Error(err))
	}
}

// Get 단건 조회
func (s *AssemblyService) Get(ctx context.Context, code string) (*entity.AssemblyView, error) {
	a, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("조립품을 찾을 수 없습니다: " + code)
		}
		return nil, err
	}
	v := a.View()
	return &v, nil
}

// OverallStats 전체 통계
type OverallStats struct {
	TotalAssemblies int     `json:"total_assemblies"`
	TotalWeight     float64 `json:"total_weight"`
	TotalWeightTons float64 `json:"total_weight_tons"`
	OverallProgress float64 `json:"overall_progress"`
}

// CompanyShare 업체별 분포
type CompanyShare struct {
	Company     string  `json:"company"`
	Count       int     `json:"count"`
	TotalWeight float64 `json:"total_weight"`
	Percentage  float64 `json:"percentage"`
}

// DashboardData 대시보드 응답
type DashboardData struct {
	OverallStats          OverallStats                         `json:"overall_stats"`
	ProcessCompletion     map[process.Stage]float64            `json:"process_completion"`
	ItemProcessCompletion map[string]map[process.Stage]float64 `json:"item_process_completion"`
	CompanyDistribution   []CompanyShare                       `json:"company_distribution"`
	InspectionStatus      map[string]int64                     `json:"inspection_status"`
	UpdatedAt             string                               `json:"updated_at"`
}

// dashboardItems BEAM/POST 탭
var dashboardItems = []string{"BEAM", "POST"}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return round1(part / total * 100)
}

// Dashboard 중량 기준 공정별 완료율. Level 3 이상
func (s *AssemblyService) Dashboard(ctx context.Context, actor lifecycle.Actor) (*DashboardData, error) {
	if err := lifecycle.Authorize(lifecycle.LevelDashboard, actor.Level); err != nil {
		return nil, err
	}

	items, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assemblies: %w", err)
	}

	var totalWeight float64
	stageWeight := make(map[process.Stage]float64, process.Count)
	itemTotal := make(map[string]float64)
	itemStage := make(map[string]map[process.Stage]float64)
	companies := make(map[string]*CompanyShare)

	for i := range items {
		a := &items[i]
		w := a.WeightNet
		totalWeight += w

		item := strings.ToUpper(strings.TrimSpace(a.Item))
		itemTotal[item] += w
		if itemStage[item] == nil {
			itemStage[item] = make(map[process.Stage]float64)
		}

		m := a.Markers()
		for _, st := range process.Stages() {
			if m.State(st) == process.MarkerDone {
				stageWeight[st] += w
				itemStage[item][st] += w
			}
		}

		if a.Company != "" {
			cs, ok := companies[a.Company]
			if !ok {
				cs = &CompanyShare{Company: a.Company}
				companies[a.Company] = cs
			}
			cs.Count++
			cs.TotalWeight += w
		}
	}

	data := &DashboardData{
		OverallStats: OverallStats{
			TotalAssemblies: len(items),
			TotalWeight:     round1(totalWeight),
			TotalWeightTons: round1(totalWeight / 1000),
			OverallProgress: percent(stageWeight[process.ArupPaint], totalWeight),
		},
		ProcessCompletion:     make(map[process.Stage]float64, process.Count),
		ItemProcessCompletion: make(map[string]map[process.Stage]float64, len(dashboardItems)),
		UpdatedAt:             time.Now().Format("2006-01-02 15:04:05"),
	}
	for _, st := range process.Stages() {
		data.ProcessCompletion[st] = percent(stageWeight[st], totalWeight)
	}
	for _, item := range dashboardItems {
		row := make(map[process.Stage]float64, process.Count)
		for _, st := range process.Stages() {
			row[st] = percent(itemStage[item][st], itemTotal[item])
		}
		data.ItemProcessCompletion[item] = row
	}

	data.CompanyDistribution = make([]CompanyShare, 0, len(companies))
	for _, cs := range companies {
		cs.Percentage = percent(cs.TotalWeight, totalWeight)
		cs.TotalWeight = round1(cs.TotalWeight)
		data.CompanyDistribution = append(data.CompanyDistribution, *cs)
	}
	sort.Slice(data.CompanyDistribution, func(i, j int) bool {
		return data.CompanyDistribution[i].TotalWeight > data.CompanyDistribution[j].TotalWeight
	})

	counts, err := s.inspect.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("count inspection status", zap.Error(err))
	} else {
		data.InspectionStatus = make(map[string]int64, len(counts))
		for st, n := range counts {
			data.InspectionStatus[st.Code()] = n
		}
	}

	return data, nil
}
