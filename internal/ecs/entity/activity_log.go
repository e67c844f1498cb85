package entity

import "time"

// ActivityLog 검사신청 처리 이력
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // inspection_request/user/saved_list
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"size:100"`

	Action     string `json:"action" gorm:"size:50;not null"` // submit/approve/reject/confirm/cancel/delete
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`

	Content  string `json:"content" gorm:"type:text"`
	Metadata JSONB  `json:"metadata" gorm:"type:jsonb"`

	OperatorID   uint      `json:"operator_id"`
	OperatorName string    `json:"operator_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "ecs_activity_logs"
}

// All 마이그레이션 대상
func All() []interface{} {
	return []interface{}{
		&Assembly{},
		&User{},
		&SavedListEntry{},
		&InspectionRequest{},
		&InspectionRequestItem{},
		&ActivityLog{},
	}
}
