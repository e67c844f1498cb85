package service

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ImportSheet 우선 읽는 시트 이름. 없으면 첫 번째 시트
const ImportSheet = "arup"

// ImportResult 조립품 마스터 import 결과
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Deleted  int64    `json:"deleted,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var headerCleaner = regexp.MustCompile(`[^A-Z0-9]`)

type importField int

const (
	fieldCode importField = iota + 1
	fieldCompany
	fieldZone
	fieldItem
	fieldWeight
	fieldStage
)

type importColumn struct {
	field importField
	stage process.Stage
}

// importHeaders 대문자 영숫자만 남긴 헤더 이름
var importHeaders = map[string]importColumn{
	"ASSEMBLY":     {field: fieldCode},
	"ASSEMBLYCODE": {field: fieldCode},
	"ASSYCODE":     {field: fieldCode},
	"COMPANY":      {field: fieldCompany},
	"ZONE":         {field: fieldZone},
	"ITEM":         {field: fieldItem},
	"WEIGHT":       {field: fieldWeight},
	"WEIGHTNET":    {field: fieldWeight},
	"NETWEIGHT":    {field: fieldWeight},
}

func init() {
	for _, st := range process.Stages() {
		key := headerCleaner.ReplaceAllString(strings.ToUpper(string(st)), "")
		importHeaders[key] = importColumn{field: fieldStage, stage: st}
		importHeaders[key+"DATE"] = importColumn{field: fieldStage, stage: st}
	}
}

func headerKey(v string) string {
	return headerCleaner.ReplaceAllString(strings.ToUpper(strings.TrimSpace(v)), "")
}

// notApplicable 해당 없는 공정 표시
var notApplicable = map[string]bool{"N/A": true, "NA": true, "-": true}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02", "2006-1-2", "2006/1/2", "01-02-06", "1/2/2006", "2006-01-02 15:04:05"}

// normalizeMarker 빈 값은 미완료, N/A와 1900년은 해당 없음, 숫자는 엑셀 일련번호
func normalizeMarker(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", true
	}
	if notApplicable[strings.ToUpper(v)] {
		return process.SkipSentinel, true
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(n, false)
		if err != nil {
			return "", false
		}
		if t.Year() <= 1900 {
			return process.SkipSentinel, true
		}
		return t.Format("2006-01-02"), true
	}
	if strings.Contains(v, "1900") {
		return process.SkipSentinel, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ParseAssemblySheet 헤더 이름으로 열을 찾아 조립품 목록을 만든다
func ParseAssemblySheet(r io.Reader) ([]entity.Assembly, *ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open excel: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	for _, name := range f.GetSheetList() {
		if strings.EqualFold(name, ImportSheet) {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read excel: %w", err)
	}
	result := &ImportResult{}
	if len(rows) < 2 {
		return nil, result, nil
	}

	columns := make(map[int]importColumn)
	hasCode := false
	for i, h := range rows[0] {
		if col, ok := importHeaders[headerKey(h)]; ok {
			columns[i] = col
			hasCode = hasCode || col.field == fieldCode
		}
	}
	if !hasCode {
		return nil, nil, fmt.Errorf("sheet %q has no ASSEMBLY column", sheet)
	}

	seen := make(map[string]int)
	var items []entity.Assembly
	for n, row := range rows[1:] {
		line := n + 2
		a := entity.Assembly{}
		for i, cell := range row {
			col, ok := columns[i]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			switch col.field {
			case fieldCode:
				a.AssemblyCode = cell
			case fieldCompany:
				a.Company = cell
			case fieldZone:
				a.Zone = cell
			case fieldItem:
				a.Item = cell
			case fieldWeight:
				if cell == "" {
					continue
				}
				w, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
				if err != nil {
					result.Warnings = append(result.Warnings, fmt.Sprintf("%d행: 중량 값을 읽을 수 없습니다 (%s)", line, cell))
					continue
				}
				if w < 0 {
					result.Warnings = append(result.Warnings, fmt.Sprintf("%d행: 중량은 0 이상이어야 합니다 (%s)", line, cell))
					w = 0
				}
				a.WeightNet = w
			case fieldStage:
				marker, ok := normalizeMarker(cell)
				if !ok {
					result.Warnings = append(result.Warnings, fmt.Sprintf("%d행 %s: 날짜를 읽을 수 없습니다 (%s)", line, col.stage.Label(), cell))
					continue
				}
				a.SetStageDate(col.stage, marker)
			}
		}

		if a.AssemblyCode == "" {
			result.Skipped++
			continue
		}
		// 같은 코드가 다시 나오면 뒤의 행으로 덮어쓴다
		if idx, ok := seen[a.AssemblyCode]; ok {
			items[idx] = a
			result.Warnings = append(result.Warnings, fmt.Sprintf("%d행: 중복 코드 %s", line, a.AssemblyCode))
			continue
		}
		seen[a.AssemblyCode] = len(items)
		items = append(items, a)
	}
	result.Imported = len(items)
	return items, result, nil
}

// Import 엑셀 조립품 마스터를 코드 기준으로 등록/갱신. replace면 한 트랜잭션에서 기존 데이터를 지우고 다시 등록한다
func (s *AssemblyService) Import(ctx context.Context, r io.Reader, replace bool) (*ImportResult, error) {
	items, result, err := ParseAssemblySheet(r)
	if err != nil {
		return nil, err
	}
	if replace {
		n, err := s.repo.Replace(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("replace assemblies: %w", err)
		}
		result.Deleted = n
	} else if err := s.repo.Upsert(ctx, items); err != nil {
		return nil, fmt.Errorf("upsert assemblies: %w", err)
	}
	s.InvalidateSearch(ctx)

	s.logger.Info("assemblies imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int64("deleted", result.Deleted),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}
