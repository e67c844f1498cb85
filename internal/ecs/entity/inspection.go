package entity

import (
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
)

// InspectionRequest 검사신청. 같은 공정의 조립품 여러 개를 한 건으로 묶는다
type InspectionRequest struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	InspectionType string     `json:"inspection_type" gorm:"size:50;not null;index"`
	RequestDate    string     `json:"request_date" gorm:"size:10;not null;index"`
	Status         string     `json:"status" gorm:"size:20;not null;default:대기중;index"`
	RequestedByID  uint       `json:"requested_by_user_id" gorm:"column:requested_by_user_id;index"`
	RequestedBy    string     `json:"requested_by_name" gorm:"column:requested_by_name;size:100"`
	ApprovedByID   *uint      `json:"approved_by_user_id" gorm:"column:approved_by_user_id"`
	ApprovedBy     string     `json:"approved_by_name" gorm:"column:approved_by_name;size:100"`
	ApprovedDate   *time.Time `json:"approved_date"`
	RejectReason   string     `json:"reject_reason" gorm:"type:text"`
	ConfirmedByID  *uint      `json:"confirmed_by_user_id" gorm:"column:confirmed_by_user_id"`
	ConfirmedBy    string     `json:"confirmed_by_name" gorm:"column:confirmed_by_name;size:100"`
	ConfirmedDate  string     `json:"confirmed_date" gorm:"size:10"`
	Notes          string     `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Items []InspectionRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID"`

	// 비DB 필드
	AssemblyCodes []string `json:"assembly_codes,omitempty" gorm:"-"`
	StatusCode    string   `json:"status_code,omitempty" gorm:"-"`
}

func (InspectionRequest) TableName() string {
	return "inspection_requests"
}

// Snapshot 상태 전이 판단용
func (r *InspectionRequest) Snapshot() lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Status:      lifecycle.Normalize(r.Status),
		RequesterID: r.RequestedByID,
		Requester:   r.RequestedBy,
	}
}

// Codes 조립품 코드 목록
func (r *InspectionRequest) Codes() []string {
	codes := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		codes = append(codes, it.AssemblyCode)
	}
	return codes
}

// Decorate 응답 전에 상태값 정규화와 비DB 필드 채우기
func (r *InspectionRequest) Decorate() {
	st := lifecycle.Normalize(r.Status)
	r.Status = string(st)
	r.StatusCode = st.Code()
	r.AssemblyCodes = r.Codes()
}

// InspectionRequestItem 검사신청 대상 조립품
type InspectionRequestItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	RequestID      uint      `json:"request_id" gorm:"not null;index"`
	AssemblyCode   string    `json:"assembly_code" gorm:"size:100;not null;index:idx_item_code_type"`
	InspectionType string    `json:"inspection_type" gorm:"size:50;not null;index:idx_item_code_type"`
	CreatedAt      time.Time `json:"created_at"`
}

func (InspectionRequestItem) TableName() string {
	return "inspection_request_items"
}

// DuplicateItem 이미 진행 중인 검사신청이 있는 조립품
type DuplicateItem struct {
	AssemblyCode      string `json:"assembly_code"`
	ExistingRequester string `json:"existing_requester"`
	ExistingDate      string `json:"existing_date"`
	RequestID         uint   `json:"request_id"`
}
