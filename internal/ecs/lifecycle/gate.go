package lifecycle

import (
	"fmt"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
)

// Level 사용자 권한 레벨 1~5
type Level int

const (
	LevelMin Level = 1
	LevelMax Level = 5

	// LevelAdmin 사용자 관리
	LevelAdmin Level = 5
	// LevelDashboard 대시보드 통계, 검사신청 전체 조회
	LevelDashboard Level = 3
)

// ParseLevel 1~5 범위 밖이면 오류
func ParseLevel(v int) (Level, error) {
	if v < int(LevelMin) || v > int(LevelMax) {
		return 0, apperr.Validation(fmt.Sprintf("권한 레벨은 %d~%d 사이여야 합니다", LevelMin, LevelMax))
	}
	return Level(v), nil
}

// Action 검사신청에 대한 동작
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionDelete  Action = "delete"
)

// ParseAction 알 수 없는 동작이면 false
func ParseAction(v string) (Action, bool) {
	a := Action(v)
	_, ok := thresholds[a]
	return a, ok
}

var thresholds = map[Action]Level{
	ActionSubmit:  1,
	ActionApprove: 2,
	ActionReject:  2,
	ActionConfirm: 3,
	ActionCancel:  1,
	ActionDelete:  3,
}

// cancelAnyLevel 본인 신청건이 아니어도 취소할 수 있는 레벨
const cancelAnyLevel Level = 3

// Required 동작별 최소 레벨
func Required(a Action) Level {
	if lv, ok := thresholds[a]; ok {
		return lv
	}
	return LevelMax
}

// Authorize 모든 권한 검사는 이 함수 하나로 한다
func Authorize(required, actor Level) error {
	if actor < required {
		return apperr.Authorization(fmt.Sprintf("권한이 없습니다 (Level %d 이상 필요)", required))
	}
	return nil
}
