// Package service 대시보드 게이트웨이. 요청 검증과 배치 판정은 여기서, 저장은 데이터 API에서 한다
package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/dashboard/upstream"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API 게이트웨이가 쓰는 데이터 API 호출
type API interface {
	Login(ctx context.Context, username, password string) (*upstream.LoginResult, error)
	SearchAssemblies(ctx context.Context, token, query string) (*upstream.SearchResult, error)
	SavedList(ctx context.Context, token string) ([]upstream.SavedEntry, error)
	AddToSavedList(ctx context.Context, token string, codes []string) (*upstream.AddResult, error)
	RemoveFromSavedList(ctx context.Context, token, code string) error
	ClearSavedList(ctx context.Context, token string) (int64, error)
	CreateInspectionRequest(ctx context.Context, token string, in upstream.CreateRequest) (*upstream.CreateResult, error)
	ListInspectionRequests(ctx context.Context, token string, f upstream.ListFilter) (*upstream.ListResult, error)
	Approve(ctx context.Context, token string, id uint) (*entity.InspectionRequest, error)
	Reject(ctx context.Context, token string, id uint, reason string) (*entity.InspectionRequest, error)
	Confirm(ctx context.Context, token string, id uint, confirmedDate string) (*entity.InspectionRequest, error)
	Cancel(ctx context.Context, token string, id uint) (*entity.InspectionRequest, error)
	Delete(ctx context.Context, token string, id uint) error
}

// Session 검증된 토큰과 그 사용자
type Session struct {
	Token string
	Actor lifecycle.Actor
}

func (s Session) key() string {
	if s.Actor.UserID != 0 {
		return strconv.FormatUint(uint64(s.Actor.UserID), 10)
	}
	return s.Actor.Username
}

type Gateway struct {
	api    API
	cache  *cache.Namespace
	bulk   config.BulkConfig
	logger *zap.Logger
}

func NewGateway(api API, store cache.Cache, cfg *config.Config, logger *zap.Logger) *Gateway {
	bulk := cfg.Bulk
	if bulk.Concurrency <= 0 {
		bulk.Concurrency = 5
	}
	return &Gateway{
		api:    api,
		cache:  cache.NewNamespace(store, "dashboard", cfg.Upstream.CacheTTL),
		bulk:   bulk,
		logger: logger.Named("gateway"),
	}
}

// invalidate 사용자 네임스페이스 삭제. 실패해도 요청은 성공으로 처리
func (g *Gateway) invalidate(ctx context.Context, s Session) {
	if err := g.cache.Invalidate(ctx, s.key()); err != nil {
		g.logger.Warn("cache invalidate failed", zap.String("user", s.key()), zap.Error(err))
	}
}

func (g *Gateway) invalidateAll(ctx context.Context) {
	if err := g.cache.Invalidate(ctx); err != nil {
		g.logger.Warn("cache invalidate failed", zap.Error(err))
	}
}

func (g *Gateway) Login(ctx context.Context, username, password string) (*upstream.LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperr.Validation("사용자명과 비밀번호를 입력해주세요")
	}
	return g.api.Login(ctx, strings.TrimSpace(username), password)
}

// Search 검색 결과는 사용자별로 짧게 캐시한다
func (g *Gateway) Search(ctx context.Context, s Session, q string) (*upstream.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("검색어를 입력해주세요")
	}

	var cached upstream.SearchResult
	if ok, err := g.cache.Get(ctx, &cached, s.key(), "search", q); err == nil && ok {
		return &cached, nil
	}

	res, err := g.api.SearchAssemblies(ctx, s.Token, q)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, res, s.key(), "search", q); err != nil {
		g.logger.Warn("cache set failed", zap.Error(err))
	}
	return res, nil
}

// SavedView 저장 리스트 화면 항목
type SavedView struct {
	entity.AssemblyView
	SavedAt time.Time `json:"saved_at"`
}

// SavedList 진행 요약은 매번 다시 계산한다
func (g *Gateway) SavedList(ctx context.Context, s Session) ([]SavedView, error) {
	var entries []upstream.SavedEntry
	ok, err := g.cache.Get(ctx, &entries, s.key(), "saved")
	if err != nil || !ok {
		entries, err = g.api.SavedList(ctx, s.Token)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Set(ctx, entries, s.key(), "saved"); err != nil {
			g.logger.Warn("cache set failed", zap.Error(err))
		}
	}

	views := make([]SavedView, 0, len(entries))
	for i := range entries {
		views = append(views, SavedView{
			AssemblyView: entries[i].Assembly.View(),
			SavedAt:      entries[i].SavedAt,
		})
	}
	return views, nil
}

func (g *Gateway) AddToSavedList(ctx context.Context, s Session, codes []string) (*upstream.AddResult, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil, apperr.Validation("추가할 항목을 선택해주세요")
	}
	res, err := g.api.AddToSavedList(ctx, s.Token, codes)
	g.invalidate(ctx, s)
	return res, err
}

func (g *Gateway) RemoveFromSavedList(ctx context.Context, s Session, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Validation("삭제할 항목을 선택해주세요")
	}
	err := g.api.RemoveFromSavedList(ctx, s.Token, code)
	g.invalidate(ctx, s)
	return err
}

func (g *Gateway) ClearSavedList(ctx context.Context, s Session) (int64, error) {
	n, err := g.api.ClearSavedList(ctx, s.Token)
	g.invalidate(ctx, s)
	return n, err
}

// SubmitResult 검사신청 결과와 저장 리스트 정리 결과
type SubmitResult struct {
	InspectionType string `json:"inspection_type"`
	*upstream.CreateResult
	Removal BulkResult `json:"saved_list_removal"`
}

// Submit 저장 리스트에서 고른 항목으로 검사신청
// 입력 검증과 권한, 배치 판정까지 끝난 뒤에만 데이터 API를 호출한다.
func (g *Gateway) Submit(ctx context.Context, s Session, codes []string, requestDate string) (*SubmitResult, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil, apperr.Validation("검사신청할 항목을 선택해주세요")
	}
	requestDate = strings.TrimSpace(requestDate)
	if requestDate == "" {
		return nil, apperr.Validation("검사신청 날짜를 선택해주세요")
	}
	if _, err := time.Parse("2006-01-02", requestDate); err != nil {
		return nil, apperr.Validation("날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)")
	}
	if err := lifecycle.Authorize(lifecycle.Required(lifecycle.ActionSubmit), s.Actor.Level); err != nil {
		return nil, err
	}

	entries, err := g.api.SavedList(ctx, s.Token)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*entity.Assembly, len(entries))
	for i := range entries {
		byCode[entries[i].AssemblyCode] = &entries[i].Assembly
	}

	batch := make([]process.Markers, 0, len(codes))
	var missing []string
	for _, code := range codes {
		a, ok := byCode[code]
		if !ok {
			missing = append(missing, code)
			continue
		}
		batch = append(batch, a.Markers())
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("저장 리스트에 없는 항목입니다: " + strings.Join(missing, ", "))
	}

	stage, err := process.CheckBatch(batch)
	if err != nil {
		return nil, err
	}

	created, err := g.api.CreateInspectionRequest(ctx, s.Token, upstream.CreateRequest{
		AssemblyCodes:  codes,
		InspectionType: stage.Label(),
		RequestDate:    requestDate,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict && created != nil {
			g.invalidate(ctx, s)
			return &SubmitResult{InspectionType: stage.Label(), CreateResult: created}, err
		}
		return nil, err
	}

	removal := g.BulkRemove(ctx, s.Token, insertedCodes(codes, created))
	g.invalidate(ctx, s)

	g.logger.Info("inspection request submitted",
		zap.String("user", s.Actor.Username),
		zap.String("inspection_type", stage.Label()),
		zap.Int("inserted", created.InsertedCount),
		zap.Int("duplicates", len(created.DuplicateItems)),
		zap.Int("removed", removal.Removed),
		zap.Int("remove_failed", removal.Failed),
	)
	return &SubmitResult{InspectionType: stage.Label(), CreateResult: created, Removal: removal}, nil
}

// insertedCodes 중복으로 빠진 항목은 저장 리스트에 남긴다
func insertedCodes(codes []string, res *upstream.CreateResult) []string {
	if len(res.InsertedCodes) > 0 {
		return res.InsertedCodes
	}
	dup := make(map[string]bool, len(res.DuplicateItems))
	for _, d := range res.DuplicateItems {
		dup[d.AssemblyCode] = true
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if !dup[c] {
			out = append(out, c)
		}
	}
	return out
}

// BulkResult 일괄 삭제 결과. 일부 실패해도 전체 실패로 보지 않는다
type BulkResult struct {
	Removed     int      `json:"removed"`
	Failed      int      `json:"failed"`
	FailedCodes []string `json:"failed_codes"`
}

// BulkRemove Concurrency개씩 묶어 동시에 지우고 묶음 사이에 ChunkPause만큼 쉰다
func (g *Gateway) BulkRemove(ctx context.Context, token string, codes []string) BulkResult {
	errs := make([]error, len(codes))
	size := g.bulk.Concurrency

	for start := 0; start < len(codes); start += size {
		end := start + size
		if end > len(codes) {
			end = len(codes)
		}
		if start > 0 && g.bulk.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				for i := start; i < len(codes); i++ {
					errs[i] = ctx.Err()
				}
				return tally(codes, errs)
			case <-time.After(g.bulk.ChunkPause):
			}
		}

		var eg errgroup.Group
		eg.SetLimit(size)
		for i := start; i < end; i++ {
			eg.Go(func() error {
				errs[i] = g.api.RemoveFromSavedList(ctx, token, codes[i])
				return nil
			})
		}
		eg.Wait()
	}

	res := tally(codes, errs)
	if res.Failed > 0 {
		g.logger.Warn("saved list bulk remove partially failed",
			zap.Int("removed", res.Removed),
			zap.Int("failed", res.Failed),
			zap.Strings("failed_codes", res.FailedCodes),
		)
	}
	return res
}

func tally(codes []string, errs []error) BulkResult {
	res := BulkResult{FailedCodes: []string{}}
	for i, err := range errs {
		if err != nil {
			res.Failed++
			res.FailedCodes = append(res.FailedCodes, codes[i])
			continue
		}
		res.Removed++
	}
	sort.Strings(res.FailedCodes)
	return res
}

func (g *Gateway) ListRequests(ctx context.Context, s Session, f upstream.ListFilter) (*upstream.ListResult, error) {
	return g.api.ListInspectionRequests(ctx, s.Token, f)
}

// Transition 권한과 입력값을 먼저 확인하고 데이터 API에 전이를 요청한다
func (g *Gateway) Transition(ctx context.Context, s Session, id uint, action lifecycle.Action, payload lifecycle.Payload) (*entity.InspectionRequest, error) {
	if action == lifecycle.ActionSubmit {
		return nil, apperr.Validation("submit은 검사신청 생성으로만 처리됩니다")
	}
	if err := lifecycle.Precheck(s.Actor.Level, action, payload); err != nil {
		return nil, err
	}

	var (
		req *entity.InspectionRequest
		err error
	)
	switch action {
	case lifecycle.ActionApprove:
		req, err = g.api.Approve(ctx, s.Token, id)
	case lifecycle.ActionReject:
		req, err = g.api.Reject(ctx, s.Token, id, payload.Reason())
	case lifecycle.ActionConfirm:
		req, err = g.api.Confirm(ctx, s.Token, id, strings.TrimSpace(payload.ConfirmedDate))
	case lifecycle.ActionCancel:
		req, err = g.api.Cancel(ctx, s.Token, id)
	case lifecycle.ActionDelete:
		err = g.api.Delete(ctx, s.Token, id)
	default:
		return nil, apperr.Validation(fmt.Sprintf("알 수 없는 요청입니다: %s", action))
	}
	if err != nil {
		return nil, err
	}

	// 확정은 조립품 공정일을 바꾸므로 모든 사용자의 검색 캐시가 무효
	if action == lifecycle.ActionConfirm {
		g.invalidateAll(ctx)
	} else {
		g.invalidate(ctx, s)
	}
	return req, nil
}

// normalizeCodes 공백 제거, 빈 값과 중복 제외, 입력 순서 유지
func normalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
