package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const entityInspection = "inspection_request"

// InspectionService 검사신청 생성과 상태 전이
type InspectionService struct {
	repos    *repository.Repositories
	assembly *AssemblyService
	hub      *sse.Hub
	logger   *zap.Logger
	nowFunc  func() time.Time
}

func NewInspectionService(repos *repository.Repositories, assembly *AssemblyService, hub *sse.Hub, logger *zap.Logger) *InspectionService {
	return &InspectionService{
		repos:    repos,
		assembly: assembly,
		hub:      hub,
		logger:   logger.Named("inspection"),
		nowFunc:  time.Now,
	}
}

// CreateInput 검사신청 생성 요청
type CreateInput struct {
	AssemblyCodes  []string `json:"assembly_codes"`
	InspectionType string   `json:"inspection_type"`
	RequestDate    string   `json:"request_date"`
	Notes          string   `json:"notes"`
}

// CreateResult 생성 결과. 중복 항목은 오류가 아니라 목록으로 돌려준다
type CreateResult struct {
	Request        *entity.InspectionRequest `json:"request,omitempty"`
	InsertedCount  int                       `json:"inserted_count"`
	InsertedCodes  []string                  `json:"inserted_codes"`
	DuplicateItems []entity.DuplicateItem    `json:"duplicate_items"`
}

// validDate YYYY-MM-DD
func validDate(v, emptyMessage string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Validation(emptyMessage)
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", apperr.Validation("날짜 형식이 올바르지 않습니다 (YYYY-MM-DD): " + v)
	}
	return v, nil
}

// Create 다음 공정이 같은 조립품들을 한 건의 검사신청으로 묶는다.
// 이미 대기중/승인됨 신청이 있는 조립품은 빼고 나머지로 만든다.
func (s *InspectionService) Create(ctx context.Context, actor lifecycle.Actor, in CreateInput) (*CreateResult, error) {
	if err := lifecycle.Authorize(lifecycle.Required(lifecycle.ActionSubmit), actor.Level); err != nil {
		return nil, err
	}
	codes := normalizeCodes(in.AssemblyCodes)
	if len(codes) == 0 {
		return nil, apperr.Validation("검사신청할 항목을 선택해주세요")
	}
	requestDate, err := validDate(in.RequestDate, "검사 날짜를 선택해주세요")
	if err != nil {
		return nil, err
	}

	assemblies, err := s.repos.Assembly.FindByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("find assemblies: %w", err)
	}
	if len(assemblies) != len(codes) {
		return nil, apperr.Validation("존재하지 않는 조립품입니다: " + strings.Join(missingCodes(codes, assemblies), ", "))
	}

	batch := make([]process.Markers, 0, len(assemblies))
	for i := range assemblies {
		batch = append(batch, assemblies[i].Markers())
	}
	stage, err := process.CheckBatch(batch)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(in.InspectionType); t != "" {
		requested, ok := process.ParseStage(t)
		if !ok || requested != stage {
			return nil, apperr.Validation(fmt.Sprintf("검사 공정이 다음 공정과 다릅니다 (요청: %s, 다음 공정: %s)", t, stage.Label()))
		}
	}
	inspectionType := stage.Label()

	result := &CreateResult{DuplicateItems: []entity.DuplicateItem{}, InsertedCodes: []string{}}
	req := &entity.InspectionRequest{
		InspectionType: inspectionType,
		RequestDate:    requestDate,
		Status:         string(lifecycle.Pending),
		RequestedByID:  actor.UserID,
		RequestedBy:    actor.DisplayName(),
		Notes:          strings.TrimSpace(in.Notes),
	}
	// 중복 확인과 등록 사이에 다른 신청이 끼어들지 않도록 조립품 행을 잠근 뒤 확인한다
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Assembly.LockCodes(ctx, codes); err != nil {
			return fmt.Errorf("lock assemblies: %w", err)
		}
		dups, err := tx.Inspection.FindActiveDuplicates(ctx, codes, inspectionType)
		if err != nil {
			return fmt.Errorf("find duplicates: %w", err)
		}
		dupSet := make(map[string]bool, len(dups))
		for _, d := range dups {
			dupSet[d.AssemblyCode] = true
		}
		if dups != nil {
			result.DuplicateItems = dups
		}
		for _, code := range codes {
			if dupSet[code] {
				continue
			}
			req.Items = append(req.Items, entity.InspectionRequestItem{AssemblyCode: code})
			result.InsertedCodes = append(result.InsertedCodes, code)
		}
		if len(req.Items) == 0 {
			return apperr.Conflict("선택한 항목은 모두 이미 검사신청되어 있습니다")
		}

		if err := tx.Inspection.CreateWithItems(ctx, req); err != nil {
			return fmt.Errorf("create inspection request: %w", err)
		}
		return tx.ActivityLog.Create(ctx, &entity.ActivityLog{
			EntityType:   entityInspection,
			EntityID:     strconv.FormatUint(uint64(req.ID), 10),
			EntityCode:   inspectionType,
			Action:       string(lifecycle.ActionSubmit),
			ToStatus:     req.Status,
			Content:      fmt.Sprintf("%s 검사신청 %d건", inspectionType, len(req.Items)),
			Metadata:     entity.JSONB{"assembly_codes": result.InsertedCodes, "duplicates": len(dups)},
			OperatorID:   actor.UserID,
			OperatorName: actor.DisplayName(),
		})
	})
	if errors.Is(err, apperr.ErrConflict) {
		return result, err
	}
	if err != nil {
		return nil, err
	}

	req.Decorate()
	result.Request = req
	result.InsertedCount = len(req.Items)

	s.hub.PublishInspectionUpdate(sse.InspectionUpdate{
		RequestID:      req.ID,
		Action:         string(lifecycle.ActionSubmit),
		Status:         req.StatusCode,
		InspectionType: inspectionType,
		Operator:       actor.DisplayName(),
	})
	s.logger.Info("inspection request created",
		zap.Uint("request_id", req.ID),
		zap.String("inspection_type", inspectionType),
		zap.Int("inserted", len(req.Items)),
		zap.Int("duplicates", len(result.DuplicateItems)),
		zap.String("username", actor.Username),
	)
	return result, nil
}

func missingCodes(codes []string, found []entity.Assembly) []string {
	have := make(map[string]bool, len(found))
	for i := range found {
		have[found[i].AssemblyCode] = true
	}
	var out []string
	for _, c := range codes {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}

// ListResult 목록 응답
type ListResult struct {
	Requests  []entity.InspectionRequest `json:"requests"`
	Total     int64                      `json:"total"`
	UserLevel lifecycle.Level            `json:"user_level"`
}

// scope Level 1은 본인 신청건 중 확정/취소 안 된 것만 본다
func scope(actor lifecycle.Actor, f repository.InspectionFilter) repository.InspectionFilter {
	if actor.Level < lifecycle.Required(lifecycle.ActionApprove) {
		f.RequesterID = actor.UserID
		f.OpenOnly = true
	}
	return f
}

func (s *InspectionService) List(ctx context.Context, actor lifecycle.Actor, f repository.InspectionFilter, page, pageSize int) (*ListResult, error) {
	items, total, err := s.repos.Inspection.FindAll(ctx, scope(actor, f), page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list inspection requests: %w", err)
	}
	for i := range items {
		items[i].Decorate()
	}
	return &ListResult{Requests: items, Total: total, UserLevel: actor.Level}, nil
}

// Get Level 1은 본인 신청건만
func (s *InspectionService) Get(ctx context.Context, actor lifecycle.Actor, id uint) (*entity.InspectionRequest, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if f := scope(actor, repository.InspectionFilter{}); f.RequesterID != 0 && req.RequestedByID != f.RequesterID {
		return nil, apperr.Authorization("본인이 신청한 검사신청만 조회할 수 있습니다")
	}
	req.Decorate()
	return req, nil
}

func (s *InspectionService) find(ctx context.Context, id uint) (*entity.InspectionRequest, error) {
	req, err := s.repos.Inspection.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("검사신청을 찾을 수 없습니다")
		}
		return nil, fmt.Errorf("find inspection request: %w", err)
	}
	return req, nil
}

// History 처리 이력
func (s *InspectionService) History(ctx context.Context, actor lifecycle.Actor, id uint) ([]entity.ActivityLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	logs, _, err := s.repos.ActivityLog.FindByEntity(ctx, entityInspection, strconv.FormatUint(uint64(id), 10), 1, 100)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return logs, nil
}

// Transition 승인/거부/확정/취소/삭제. 확정은 조립품 공정 완료일까지 한 트랜잭션으로 기록한다
func (s *InspectionService) Transition(ctx context.Context, actor lifecycle.Actor, id uint, action lifecycle.Action, payload lifecycle.Payload) (*entity.InspectionRequest, error) {
	if err := lifecycle.Precheck(actor.Level, action, payload); err != nil {
		return nil, err
	}
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	from := lifecycle.Normalize(req.Status)
	to, err := lifecycle.Transition(actor, req.Snapshot(), action, payload)
	if err != nil {
		return nil, err
	}

	var stage process.Stage
	if action == lifecycle.ActionConfirm {
		if payload.ConfirmedDate, err = validDate(payload.ConfirmedDate, "확정 날짜를 입력해주세요"); err != nil {
			return nil, err
		}
		var ok bool
		if stage, ok = process.ParseStage(req.InspectionType); !ok {
			return nil, apperr.Validation("알 수 없는 검사 공정입니다: " + req.InspectionType)
		}
	}

	now := s.nowFunc()
	fields := map[string]interface{}{"status": string(to)}
	content := ""
	switch action {
	case lifecycle.ActionApprove:
		fields["approved_by_user_id"] = actor.UserID
		fields["approved_by_name"] = actor.DisplayName()
		fields["approved_date"] = now
		content = "승인"
	case lifecycle.ActionReject:
		fields["approved_by_user_id"] = actor.UserID
		fields["approved_by_name"] = actor.DisplayName()
		fields["approved_date"] = now
		fields["reject_reason"] = payload.Reason()
		content = "거부: " + payload.Reason()
	case lifecycle.ActionConfirm:
		fields["confirmed_by_user_id"] = actor.UserID
		fields["confirmed_by_name"] = actor.DisplayName()
		fields["confirmed_date"] = payload.ConfirmedDate
		content = "확정: " + payload.ConfirmedDate
	case lifecycle.ActionCancel:
		content = "취소"
	case lifecycle.ActionDelete:
		content = "삭제"
	}

	codes := req.Codes()
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if action == lifecycle.ActionDelete {
			if err := tx.Inspection.Delete(ctx, id); err != nil {
				return err
			}
		} else {
			if err := tx.Inspection.UpdateFromStatus(ctx, id, from, fields); err != nil {
				return err
			}
			if action == lifecycle.ActionConfirm && len(codes) > 0 {
				date := payload.ConfirmedDate
				n, err := tx.Assembly.SetStageDate(ctx, codes, stage, &date)
				if err != nil {
					return fmt.Errorf("set stage date: %w", err)
				}
				s.logger.Info("stage date recorded", zap.Uint("request_id", id), zap.String("stage", string(stage)), zap.Int64("assemblies", n))
			}
		}
		return tx.ActivityLog.Create(ctx, &entity.ActivityLog{
			EntityType:   entityInspection,
			EntityID:     strconv.FormatUint(uint64(id), 10),
			EntityCode:   req.InspectionType,
			Action:       string(action),
			FromStatus:   string(from),
			ToStatus:     string(to),
			Content:      content,
			Metadata:     entity.JSONB{"assembly_codes": codes},
			OperatorID:   actor.UserID,
			OperatorName: actor.DisplayName(),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStale):
			return nil, apperr.State("다른 사용자가 먼저 처리한 검사신청입니다")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("검사신청을 찾을 수 없습니다")
		}
		return nil, fmt.Errorf("%s inspection request: %w", action, err)
	}

	if action == lifecycle.ActionConfirm {
		s.assembly.InvalidateSearch(ctx)
	}

	s.hub.PublishInspectionUpdate(sse.InspectionUpdate{
		RequestID:      id,
		Action:         string(action),
		Status:         to.Code(),
		InspectionType: req.InspectionType,
		Operator:       actor.DisplayName(),
	})
	s.logger.Info("inspection request transition",
		zap.Uint("request_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("username", actor.Username),
	)

	if action == lifecycle.ActionDelete {
		req.Decorate()
		return req, nil
	}
	return s.Get(ctx, actor, id)
}

func (s *InspectionService) Approve(ctx context.Context, actor lifecycle.Actor, id uint) (*entity.InspectionRequest, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionApprove, lifecycle.Payload{})
}

func (s *InspectionService) Reject(ctx context.Context, actor lifecycle.Actor, id uint, reason string) (*entity.InspectionRequest, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionReject, lifecycle.Payload{RejectReason: reason})
}

func (s *InspectionService) Confirm(ctx context.Context, actor lifecycle.Actor, id uint, confirmedDate string) (*entity.InspectionRequest, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionConfirm, lifecycle.Payload{ConfirmedDate: confirmedDate})
}

func (s *InspectionService) Cancel(ctx context.Context, actor lifecycle.Actor, id uint) (*entity.InspectionRequest, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionCancel, lifecycle.Payload{})
}

func (s *InspectionService) Delete(ctx context.Context, actor lifecycle.Actor, id uint) error {
	_, err := s.Transition(ctx, actor, id, lifecycle.ActionDelete, lifecycle.Payload{})
	return err
}

var exportHeaders = []string{"ID", "검사공정", "검사 요청일", "상태", "신청자", "조립품 수", "Assembly Code", "승인/거부자", "거부 사유", "확정자", "확정일", "신청일시"}

// Export 목록 조건 그대로 엑셀로 내보낸다
func (s *InspectionService) Export(ctx context.Context, actor lifecycle.Actor, f repository.InspectionFilter) (*excelize.File, string, error) {
	list, err := s.List(ctx, actor, f, 0, 0)
	if err != nil {
		return nil, "", err
	}

	file := excelize.NewFile()
	sheet := "검사신청"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, _ := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, h)
		file.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, req := range list.Requests {
		row := i + 2
		codes := append([]string(nil), req.AssemblyCodes...)
		sort.Strings(codes)
		values := []interface{}{
			req.ID,
			req.InspectionType,
			req.RequestDate,
			req.Status,
			req.RequestedBy,
			len(codes),
			strings.Join(codes, ", "),
			req.ApprovedBy,
			req.RejectReason,
			req.ConfirmedBy,
			req.ConfirmedDate,
			req.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			file.SetCellValue(sheet, cell, v)
		}
	}

	widths := []float64{8, 14, 14, 10, 14, 10, 60, 14, 30, 14, 14, 18}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		file.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("inspection_requests_%s.xlsx", s.nowFunc().Format("20060102_150405"))
	return file, filename, nil
}
