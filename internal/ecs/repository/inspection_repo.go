package repository

import (
	"context"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"gorm.io/gorm"
)

// InspectionFilter 검사신청 목록 조건
type InspectionFilter struct {
	Status         string
	InspectionType string
	AssemblyCode   string
	DateFrom       string
	DateTo         string
	// RequesterID 0이 아니면 본인 신청건만
	RequesterID uint
	// OpenOnly 확정/취소 건 제외
	OpenOnly bool
}

// InspectionRepository 검사신청 저장소
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// FindAll 최근 신청 순. pageSize가 0이면 전체
func (r *InspectionRepository) FindAll(ctx context.Context, f InspectionFilter, page, pageSize int) ([]entity.InspectionRequest, int64, error) {
	var items []entity.InspectionRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.InspectionRequest{})

	if f.RequesterID != 0 {
		query = query.Where("requested_by_user_id = ?", f.RequesterID)
	}
	if f.OpenOnly {
		query = query.Where("status NOT IN ?", lifecycle.StoredValues(lifecycle.Confirmed, lifecycle.Cancelled))
	}
	if f.Status != "" {
		query = query.Where("status IN ?", lifecycle.StoredValues(lifecycle.Normalize(f.Status)))
	}
	if f.InspectionType != "" {
		query = query.Where("inspection_type = ?", f.InspectionType)
	}
	if f.DateFrom != "" {
		query = query.Where("request_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		query = query.Where("request_date <= ?", f.DateTo)
	}
	if f.AssemblyCode != "" {
		sub := r.db.Model(&entity.InspectionRequestItem{}).
			Select("request_id").
			Where("assembly_code LIKE ?", "%"+f.AssemblyCode+"%")
		query = query.Where("id IN (?)", sub)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Items").Order("created_at DESC, id DESC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Find(&items).Error
	return items, total, err
}

func (r *InspectionRepository) FindByID(ctx context.Context, id uint) (*entity.InspectionRequest, error) {
	var req entity.InspectionRequest
	err := r.db.WithContext(ctx).Preload("Items").First(&req, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// FindActiveDuplicates 같은 공정으로 대기중/승인됨 상태인 신청이 있는 조립품
func (r *InspectionRepository) FindActiveDuplicates(ctx context.Context, codes []string, inspectionType string) ([]entity.DuplicateItem, error) {
	var dups []entity.DuplicateItem
	if len(codes) == 0 {
		return dups, nil
	}
	err := r.db.WithContext(ctx).
		Table("inspection_request_items AS i").
		Select("i.assembly_code AS assembly_code, r.requested_by_name AS existing_requester, r.request_date AS existing_date, r.id AS request_id").
		Joins("JOIN inspection_requests AS r ON r.id = i.request_id").
		Where("i.assembly_code IN ? AND i.inspection_type = ?", codes, inspectionType).
		Where("r.status IN ?", lifecycle.StoredValues(lifecycle.ActiveStatuses()...)).
		Order("r.id").
		Scan(&dups).Error
	return dups, err
}

// CreateWithItems 신청과 대상 조립품을 함께 저장
func (r *InspectionRepository) CreateWithItems(ctx context.Context, req *entity.InspectionRequest) error {
	for i := range req.Items {
		req.Items[i].InspectionType = req.InspectionType
	}
	return r.db.WithContext(ctx).Create(req).Error
}

// UpdateFromStatus 현재 상태가 from일 때만 갱신한다
func (r *InspectionRepository) UpdateFromStatus(ctx context.Context, id uint, from lifecycle.Status, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.InspectionRequest{}).
		Where("id = ? AND status IN ?", id, lifecycle.StoredValues(from)).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// Delete 대상 조립품 행까지 삭제
func (r *InspectionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", id).Delete(&entity.InspectionRequestItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.InspectionRequest{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CountByStatus 상태별 건수 (대시보드)
func (r *InspectionRepository) CountByStatus(ctx context.Context) (map[lifecycle.Status]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&entity.InspectionRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[lifecycle.Status]int64, len(rows))
	for _, row := range rows {
		out[lifecycle.Normalize(row.Status)] += row.Count
	}
	return out, nil
}
