package process

import "strings"

// SkipSentinel 해당 조립품에 필요 없는 공정 표시 날짜
const SkipSentinel = "1900-01-01"

// Markers 공정별 완료 표시. 키가 없으면 빈 문자열과 같다
type Markers map[Stage]string

// MarkerState 완료 표시 해석 결과
type MarkerState int

const (
	MarkerOpen MarkerState = iota
	MarkerDone
	MarkerSkipped
)

// State 공정 하나의 표시를 해석한다. 날짜 형식은 검증하지 않는다
func (m Markers) State(s Stage) MarkerState {
	v := strings.TrimSpace(m[s])
	switch {
	case v == "":
		return MarkerOpen
	case strings.Contains(v, "1900"):
		return MarkerSkipped
	default:
		return MarkerDone
	}
}

// Result 다음 공정 계산 결과
type Result struct {
	Next     Stage
	Complete bool
}

func (r Result) String() string {
	if r.Complete {
		return "COMPLETE"
	}
	return string(r.Next)
}

// Label 다음 공정 표시명, 완료면 "완료"
func (r Result) Label() string {
	if r.Complete {
		return StatusComplete
	}
	return r.Next.Label()
}

// Resolve 순서대로 보면서 처음 비어 있는 공정을 다음 공정으로 본다.
// 앞 공정이 비어 있으면 뒤 공정의 날짜는 보지 않는다.
func Resolve(m Markers) Result {
	for _, st := range order {
		if m.State(st) == MarkerOpen {
			return Result{Next: st}
		}
	}
	return Result{Complete: true}
}

// 진행 상태 (기존 화면 값 유지)
const (
	StatusWaiting    = "대기"
	StatusInProgress = "진행중"
	StatusComplete   = "완료"
	NotStarted       = "시작전"
)

// Summary 조립품 진행 요약
type Summary struct {
	Status      string  `json:"status"`
	LastProcess string  `json:"lastProcess"`
	NextProcess string  `json:"nextProcess"`
	NextStage   string  `json:"next_stage"`
	Skipped     []Stage `json:"skipped_stages,omitempty"`
	Required    int     `json:"required_stages"`
	Completed   int     `json:"completed_stages"`
}

// Summarize 상태/마지막 공정/다음 공정을 한 번에 계산
func Summarize(m Markers) Summary {
	var (
		skipped []Stage
		done    int
		last    Stage
	)
	for _, st := range order {
		switch m.State(st) {
		case MarkerSkipped:
			skipped = append(skipped, st)
		case MarkerDone:
			done++
			last = st
		}
	}

	next := Resolve(m)
	sum := Summary{
		NextProcess: next.Label(),
		NextStage:   next.String(),
		Skipped:     skipped,
		Required:    Count - len(skipped),
		Completed:   done,
		LastProcess: NotStarted,
		Status:      StatusWaiting,
	}
	if done > 0 {
		sum.LastProcess = string(last)
		sum.Status = StatusInProgress
	}
	if next.Complete {
		sum.Status = StatusComplete
	}
	return sum
}
