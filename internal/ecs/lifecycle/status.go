// Package lifecycle 검사신청 상태 전이와 권한 레벨 판정
package lifecycle

import "strings"

// Status 검사신청 상태 (DB 저장값)
type Status string

const (
	Pending   Status = "대기중"
	Approved  Status = "승인됨"
	Confirmed Status = "확정됨"
	Rejected  Status = "거부됨"
	Cancelled Status = "취소됨"
)

var aliases = map[string]Status{
	"pending":   Pending,
	"approved":  Approved,
	"confirmed": Confirmed,
	"rejected":  Rejected,
	"cancelled": Cancelled,
	"canceled":  Cancelled,
}

var codes = map[Status]string{
	Pending:   "PENDING",
	Approved:  "APPROVED",
	Confirmed: "CONFIRMED",
	Rejected:  "REJECTED",
	Cancelled: "CANCELLED",
}

// Normalize 예전 영문 상태값을 한글 저장값으로 맞춘다
func Normalize(v string) Status {
	v = strings.TrimSpace(v)
	if st, ok := aliases[strings.ToLower(v)]; ok {
		return st
	}
	return Status(v)
}

// Code 영문 상태 코드
func (s Status) Code() string {
	if c, ok := codes[s]; ok {
		return c
	}
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := codes[s]
	return ok
}

// Terminal 더 이상 전이가 없는 상태
func (s Status) Terminal() bool {
	return len(ValidTransitions[s]) == 0
}

// Active 중복 검사 대상 상태 (대기중, 승인됨)
func (s Status) Active() bool {
	return s == Pending || s == Approved
}

// ValidTransitions 상태별 허용 전이
var ValidTransitions = map[Status][]Status{
	Pending:  {Approved, Rejected, Cancelled},
	Approved: {Confirmed, Cancelled},
}

// CanTransition from → to 전이 가능 여부
func CanTransition(from, to Status) bool {
	for _, st := range ValidTransitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

// ActiveStatuses 진행 중인 상태 목록
func ActiveStatuses() []Status {
	return []Status{Pending, Approved}
}

// StoredValues 예전 영문 값까지 포함한 DB 조회용 값 목록
func StoredValues(statuses ...Status) []string {
	out := make([]string, 0, len(statuses)*2)
	for _, st := range statuses {
		out = append(out, string(st))
		for alias, target := range aliases {
			if target == st {
				out = append(out, alias)
			}
		}
	}
	return out
}
