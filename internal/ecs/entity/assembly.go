package entity

import (
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
)

// Assembly 조립품 마스터 (ARUP ECS)
type Assembly struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	AssemblyCode string  `json:"assembly_code" gorm:"size:100;not null;uniqueIndex"`
	Company      string  `json:"company" gorm:"size:100;index"`
	Zone         string  `json:"zone" gorm:"size:50"`
	Item         string  `json:"item" gorm:"size:100;index"`
	WeightNet    float64 `json:"weight_net" gorm:"type:decimal(12,3);not null;default:0"`

	// 공정별 완료일 YYYY-MM-DD, 1900-01-01은 해당 없음
	FitUpDate     *string `json:"fit_up_date" gorm:"size:10"`
	FinalDate     *string `json:"final_date" gorm:"size:10"`
	ArupFinalDate *string `json:"arup_final_date" gorm:"size:10"`
	GalvDate      *string `json:"galv_date" gorm:"size:10"`
	ArupGalvDate  *string `json:"arup_galv_date" gorm:"size:10"`
	ShotDate      *string `json:"shot_date" gorm:"size:10"`
	PaintDate     *string `json:"paint_date" gorm:"size:10"`
	ArupPaintDate *string `json:"arup_paint_date" gorm:"size:10"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Assembly) TableName() string {
	return "arup_ecs"
}

func (a *Assembly) dates() map[process.Stage]**string {
	return map[process.Stage]**string{
		process.FitUp:     &a.FitUpDate,
		process.Final:     &a.FinalDate,
		process.ArupFinal: &a.ArupFinalDate,
		process.Galv:      &a.GalvDate,
		process.ArupGalv:  &a.ArupGalvDate,
		process.Shot:      &a.ShotDate,
		process.Paint:     &a.PaintDate,
		process.ArupPaint: &a.ArupPaintDate,
	}
}

// Markers 공정 완료 표시
func (a *Assembly) Markers() process.Markers {
	m := make(process.Markers, process.Count)
	for st, p := range a.dates() {
		if *p != nil {
			m[st] = **p
		}
	}
	return m
}

// StageDate 공정 완료일, 없으면 ""
func (a *Assembly) StageDate(st process.Stage) string {
	p, ok := a.dates()[st]
	if !ok || *p == nil {
		return ""
	}
	return **p
}

// SetStageDate 빈 문자열이면 nil로 저장
func (a *Assembly) SetStageDate(st process.Stage, date string) {
	p, ok := a.dates()[st]
	if !ok {
		return
	}
	if date == "" {
		*p = nil
		return
	}
	*p = &date
}

// AssemblyView 조회 응답. 예전 화면 호환 필드 포함
type AssemblyView struct {
	Assembly
	WeightGross float64         `json:"weight_gross"`
	Summary     process.Summary `json:"summary"`
	Status      string          `json:"status"`
	LastProcess string          `json:"lastProcess"`
	NextProcess string          `json:"nextProcess"`
	NextStage   string          `json:"next_stage"`
}

// View 진행 요약을 붙인 응답용 값
func (a *Assembly) View() AssemblyView {
	sum := process.Summarize(a.Markers())
	return AssemblyView{
		Assembly:    *a,
		WeightGross: a.WeightNet,
		Summary:     sum,
		Status:      sum.Status,
		LastProcess: sum.LastProcess,
		NextProcess: sum.NextProcess,
		NextStage:   sum.NextStage,
	}
}
