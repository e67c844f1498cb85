package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"go.uber.org/zap"
)

// SavedListService 사용자별 저장 리스트
type SavedListService struct {
	repo     *repository.SavedListRepository
	assembly *repository.AssemblyRepository
	hub      *sse.Hub
	archiver Archiver
	maxCodes int
	logger   *zap.Logger
}

func NewSavedListService(repo *repository.SavedListRepository, assembly *repository.AssemblyRepository, hub *sse.Hub, archiver Archiver, maxCodes int, logger *zap.Logger) *SavedListService {
	if maxCodes <= 0 {
		maxCodes = 100
	}
	return &SavedListService{
		repo:     repo,
		assembly: assembly,
		hub:      hub,
		archiver: archiver,
		maxCodes: maxCodes,
		logger:   logger.Named("saved_list"),
	}
}

// SavedItem 저장 리스트 항목. 조립품 값은 조회 시점 기준
type SavedItem struct {
	entity.AssemblyView
	SavedAt time.Time `json:"saved_at"`
}

// AddResult 추가 결과
type AddResult struct {
	SavedCount   int      `json:"saved_count"`
	UpdatedCount int      `json:"updated_count"`
	Total        int64    `json:"total"`
	InvalidCodes []string `json:"invalid_codes,omitempty"`
}

// UploadResult 파일/코드 목록 업로드 결과
type UploadResult struct {
	TotalUploaded int      `json:"total_uploaded"`
	ValidCount    int      `json:"valid_count"`
	InvalidCount  int      `json:"invalid_count"`
	SavedCount    int      `json:"saved_count"`
	UpdatedCount  int      `json:"updated_count"`
	TotalInList   int64    `json:"total_in_list"`
	InvalidCodes  []string `json:"invalid_codes"`
	ArchivedAs    string   `json:"archived_as,omitempty"`
}

func snapshot(v entity.AssemblyView) entity.JSONB {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out entity.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Add 존재하는 조립품만 저장하고 없는 코드는 돌려준다
func (s *SavedListService) Add(ctx context.Context, actor lifecycle.Actor, codes []string) (*AddResult, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil, apperr.Validation("저장할 항목이 없습니다")
	}

	assemblies, err := s.assembly.FindByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("find assemblies: %w", err)
	}
	found := make(map[string]*entity.Assembly, len(assemblies))
	for i := range assemblies {
		found[assemblies[i].AssemblyCode] = &assemblies[i]
	}

	var (
		entries []entity.SavedListEntry
		invalid []string
	)
	for _, code := range codes {
		a, ok := found[code]
		if !ok {
			invalid = append(invalid, code)
			continue
		}
		entries = append(entries, entity.SavedListEntry{
			AssemblyCode: code,
			AssemblyData: snapshot(a.View()),
		})
	}

	result := &AddResult{InvalidCodes: invalid}
	if len(entries) > 0 {
		saved, updated, err := s.repo.Upsert(ctx, actor.UserID, entries)
		if err != nil {
			return nil, fmt.Errorf("upsert saved list: %w", err)
		}
		result.SavedCount, result.UpdatedCount = saved, updated
	}
	if result.Total, err = s.repo.Count(ctx, actor.UserID); err != nil {
		return nil, fmt.Errorf("count saved list: %w", err)
	}

	s.hub.PublishSavedListUpdate(actor.UserID, "add", int(result.Total))
	return result, nil
}

// List 저장된 코드를 현재 조립품 값과 합쳐서 돌려준다. 마스터에서 사라진 코드는 제외
func (s *SavedListService) List(ctx context.Context, actor lifecycle.Actor) ([]SavedItem, error) {
	entries, err := s.repo.List(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	if len(entries) == 0 {
		return []SavedItem{}, nil
	}

	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.AssemblyCode)
	}
	assemblies, err := s.assembly.FindByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("find assemblies: %w", err)
	}
	byCode := make(map[string]*entity.Assembly, len(assemblies))
	for i := range assemblies {
		byCode[assemblies[i].AssemblyCode] = &assemblies[i]
	}

	items := make([]SavedItem, 0, len(entries))
	for _, e := range entries {
		a, ok := byCode[e.AssemblyCode]
		if !ok {
			continue
		}
		items = append(items, SavedItem{AssemblyView: a.View(), SavedAt: e.CreatedAt})
	}
	return items, nil
}

// Remove 없는 코드면 NotFound
func (s *SavedListService) Remove(ctx context.Context, actor lifecycle.Actor, code string) error {
	ok, err := s.repo.Delete(ctx, actor.UserID, code)
	if err != nil {
		return fmt.Errorf("delete saved: %w", err)
	}
	if !ok {
		return apperr.NotFound("저장 리스트에 없는 항목입니다: " + code)
	}
	s.hub.PublishSavedListUpdate(actor.UserID, "remove", 1)
	return nil
}

// Clear 삭제 건수
func (s *SavedListService) Clear(ctx context.Context, actor lifecycle.Actor) (int64, error) {
	n, err := s.repo.Clear(ctx, actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("clear saved: %w", err)
	}
	s.hub.PublishSavedListUpdate(actor.UserID, "clear", 0)
	return n, nil
}

// UploadCodes 코드 목록 업로드. 최대 개수를 넘으면 거절
func (s *SavedListService) UploadCodes(ctx context.Context, actor lifecycle.Actor, codes []string) (*UploadResult, error) {
	if len(codes) == 0 {
		return nil, apperr.Validation("Assembly Code 목록이 비어있습니다")
	}
	if len(codes) > s.maxCodes {
		return nil, apperr.Validation(fmt.Sprintf("최대 %d개까지만 업로드 가능합니다. 현재: %d개", s.maxCodes, len(codes)))
	}

	added, err := s.Add(ctx, actor, codes)
	if err != nil {
		return nil, err
	}
	valid := added.SavedCount + added.UpdatedCount
	invalid := added.InvalidCodes
	if invalid == nil {
		invalid = []string{}
	}
	return &UploadResult{
		TotalUploaded: len(codes),
		ValidCount:    valid,
		InvalidCount:  len(invalid),
		SavedCount:    added.SavedCount,
		UpdatedCount:  added.UpdatedCount,
		TotalInList:   added.Total,
		InvalidCodes:  invalid,
	}, nil
}

// UploadFile 엑셀/CSV 파일의 A열 코드를 저장 리스트에 추가. 원본은 보관소에 남긴다
func (s *SavedListService) UploadFile(ctx context.Context, actor lifecycle.Actor, fileName string, data []byte) (*UploadResult, error) {
	if fileName == "" || len(data) == 0 {
		return nil, apperr.Validation("파일이 선택되지 않았습니다")
	}
	codes, err := ParseCodeFile(fileName, data, s.maxCodes)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, apperr.Validation("A열에서 Assembly Code를 찾을 수 없습니다")
	}

	result, err := s.UploadCodes(ctx, actor, codes)
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		name, err := s.archiver.Archive(ctx, fmt.Sprintf("uploads/%s", actor.Username), fileName, data, http.DetectContentType(data))
		if err != nil {
			s.logger.Warn("archive upload", zap.String("file", fileName), zap.Error(err))
		} else {
			result.ArchivedAs = name
		}
	}

	s.logger.Info("saved list upload",
		zap.String("username", actor.Username),
		zap.String("file", fileName),
		zap.Int("valid", result.ValidCount),
		zap.Int("invalid", result.InvalidCount),
	)
	return result, nil
}
