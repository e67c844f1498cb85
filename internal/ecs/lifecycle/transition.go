package lifecycle

import (
	"strings"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
)

// DefaultRejectReason 사유 없이 거부한 경우
const DefaultRejectReason = "거부됨"

// Actor 요청한 사용자
type Actor struct {
	UserID   uint
	Username string
	// Name 표시 이름. 신청자/승인자 이름 기록용
	Name  string
	Level Level
}

// DisplayName 이름이 없으면 username
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

// Snapshot 전이 판단에 필요한 검사신청 현재 상태
type Snapshot struct {
	Status      Status
	RequesterID uint
	Requester   string
}

// Payload 동작별 입력값
type Payload struct {
	ConfirmedDate string `json:"confirmed_date"`
	RejectReason  string `json:"reject_reason"`
}

// Reason 거부 사유, 비어 있으면 기본값
func (p Payload) Reason() string {
	if r := strings.TrimSpace(p.RejectReason); r != "" {
		return r
	}
	return DefaultRejectReason
}

var targets = map[Action]Status{
	ActionApprove: Approved,
	ActionReject:  Rejected,
	ActionConfirm: Confirmed,
	ActionCancel:  Cancelled,
}

// Precheck 원격 호출 전에 할 수 있는 검사: 레벨과 입력값
func Precheck(actor Level, action Action, payload Payload) error {
	if _, ok := thresholds[action]; !ok {
		return apperr.Validation("알 수 없는 요청입니다: " + string(action))
	}
	if err := Authorize(Required(action), actor); err != nil {
		return err
	}
	if action == ActionConfirm && strings.TrimSpace(payload.ConfirmedDate) == "" {
		return apperr.Validation("확정 날짜를 입력해주세요")
	}
	return nil
}

// Transition 검사신청 상태 전이. 권한 → 입력값 → 상태 순서로 검사한다.
// delete는 상태와 무관하게 허용되며 현재 상태를 그대로 돌려준다.
func Transition(actor Actor, req Snapshot, action Action, payload Payload) (Status, error) {
	if action == ActionSubmit {
		return "", apperr.Validation("submit은 검사신청 생성으로만 처리됩니다")
	}
	if err := Precheck(actor.Level, action, payload); err != nil {
		return "", err
	}

	from := Normalize(string(req.Status))
	if action == ActionDelete {
		return from, nil
	}

	if action == ActionCancel && actor.Level < cancelAnyLevel && !owns(actor, req) {
		return "", apperr.Authorization("본인이 신청한 검사신청만 취소할 수 있습니다")
	}

	to := targets[action]
	if !CanTransition(from, to) {
		return "", stateError(action, from)
	}
	return to, nil
}

func owns(actor Actor, req Snapshot) bool {
	if req.RequesterID != 0 && actor.UserID != 0 {
		return req.RequesterID == actor.UserID
	}
	return req.Requester != "" && req.Requester == actor.Username
}

func stateError(action Action, from Status) error {
	switch action {
	case ActionApprove, ActionReject:
		return apperr.State("대기중인 검사신청만 처리할 수 있습니다 (현재: " + string(from) + ")")
	case ActionConfirm:
		return apperr.State("승인된 검사신청만 확정할 수 있습니다 (현재: " + string(from) + ")")
	default:
		return apperr.State("이미 처리가 끝난 검사신청입니다 (현재: " + string(from) + ")")
	}
}
