// Package process 8단계 공정 순서와 조립품 진행 상태 계산
package process

import "strings"

// Stage 공정
type Stage string

const (
	FitUp     Stage = "FIT_UP"
	Final     Stage = "FINAL"
	ArupFinal Stage = "ARUP_FINAL"
	Galv      Stage = "GALV"
	ArupGalv  Stage = "ARUP_GALV"
	Shot      Stage = "SHOT"
	Paint     Stage = "PAINT"
	ArupPaint Stage = "ARUP_PAINT"
)

// order FIT_UP → FINAL → ARUP_FINAL → GALV → ARUP_GALV → SHOT → PAINT → ARUP_PAINT
var order = [...]Stage{FitUp, Final, ArupFinal, Galv, ArupGalv, Shot, Paint, ArupPaint}

type stageInfo struct {
	label  string
	column string
}

var catalog = map[Stage]stageInfo{
	FitUp:     {"FIT-UP", "fit_up_date"},
	Final:     {"FINAL", "final_date"},
	ArupFinal: {"ARUP FINAL", "arup_final_date"},
	Galv:      {"GALV", "galv_date"},
	ArupGalv:  {"ARUP GALV", "arup_galv_date"},
	Shot:      {"SHOT", "shot_date"},
	Paint:     {"PAINT", "paint_date"},
	ArupPaint: {"ARUP PAINT", "arup_paint_date"},
}

// Count 공정 수
const Count = len(order)

// Stages 공정 순서 (호출마다 새 slice)
func Stages() []Stage {
	out := make([]Stage, len(order))
	copy(out, order[:])
	return out
}

// Index 공정 순번, 알 수 없는 값은 -1
func (s Stage) Index() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid 8개 공정 중 하나인지
func (s Stage) Valid() bool {
	_, ok := catalog[s]
	return ok
}

// Label 화면 표시명
func (s Stage) Label() string {
	if info, ok := catalog[s]; ok {
		return info.label
	}
	return string(s)
}

// Column 조립품 테이블의 완료일 컬럼명
func (s Stage) Column() string {
	return catalog[s].column
}

// ParseStage 공정명 또는 표시명을 Stage로 변환
func ParseStage(v string) (Stage, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	normalized := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(v))
	st := Stage(normalized)
	if st.Valid() {
		return st, true
	}
	return "", false
}
