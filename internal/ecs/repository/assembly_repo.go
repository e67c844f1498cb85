package repository

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssemblyRepository 조립품 저장소
type AssemblyRepository struct {
	db *gorm.DB
}

func NewAssemblyRepository(db *gorm.DB) *AssemblyRepository {
	return &AssemblyRepository{db: db}
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Search 숫자 3자리 이하는 코드 끝 3자리 검색, 그 외는 코드/ITEM 부분 일치
func (r *AssemblyRepository) Search(ctx context.Context, q string, limit int) ([]entity.Assembly, error) {
	q = strings.TrimSpace(q)
	if limit <= 0 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&entity.Assembly{})
	if isDigits(q) && len(q) <= 3 {
		suffix := strings.Repeat("0", 3-len(q)) + q
		query = query.Where("assembly_code LIKE ?", "%"+suffix)
	} else {
		pattern := "%" + strings.ToUpper(q) + "%"
		query = query.Where("UPPER(assembly_code) LIKE ? OR UPPER(item) LIKE ?", pattern, pattern)
	}

	var items []entity.Assembly
	err := query.Order("assembly_code").Limit(limit).Find(&items).Error
	return items, err
}

func (r *AssemblyRepository) FindByCode(ctx context.Context, code string) (*entity.Assembly, error) {
	var a entity.Assembly
	err := r.db.WithContext(ctx).Where("assembly_code = ?", code).First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// FindByCodes 코드 순서는 보장하지 않는다
func (r *AssemblyRepository) FindByCodes(ctx context.Context, codes []string) ([]entity.Assembly, error) {
	var items []entity.Assembly
	if len(codes) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("assembly_code IN ?", codes).
		Order("assembly_code").
		Find(&items).Error
	return items, err
}

// Upsert 코드 기준 일괄 등록/갱신 (엑셀 import)
func (r *AssemblyRepository) Upsert(ctx context.Context, items []entity.Assembly) error {
	if len(items) == 0 {
		return nil
	}
	columns := []string{"company", "zone", "item", "weight_net", "updated_at"}
	for _, st := range process.Stages() {
		columns = append(columns, st.Column())
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assembly_code"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).CreateInBatches(items, 200).Error
}

// SetStageDate 여러 조립품의 공정 완료일을 한 번에 기록. date가 nil이면 비운다
func (r *AssemblyRepository) SetStageDate(ctx context.Context, codes []string, st process.Stage, date *string) (int64, error) {
	if !st.Valid() {
		return 0, fmt.Errorf("unknown stage: %s", st)
	}
	var value interface{}
	if date != nil {
		value = *date
	}
	res := r.db.WithContext(ctx).Model(&entity.Assembly{}).
		Where("assembly_code IN ?", codes).
		Update(st.Column(), value)
	return res.RowsAffected, res.Error
}

// All 대시보드 통계용. 통계에 필요한 컬럼만 읽는다
func (r *AssemblyRepository) All(ctx context.Context) ([]entity.Assembly, error) {
	columns := []string{"id", "assembly_code", "company", "item", "weight_net"}
	for _, st := range process.Stages() {
		columns = append(columns, st.Column())
	}
	var items []entity.Assembly
	err := r.db.WithContext(ctx).Select(columns).Order("assembly_code").Find(&items).Error
	return items, err
}

func (r *AssemblyRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Assembly{}).Count(&total).Error
	return total, err
}

// Replace 전체 삭제 후 등록. 둘 중 하나라도 실패하면 기존 데이터는 그대로 남는다
func (r *AssemblyRepository) Replace(ctx context.Context, items []entity.Assembly) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entity.Assembly{})
		if res.Error != nil {
			return fmt.Errorf("delete assemblies: %w", res.Error)
		}
		deleted = res.RowsAffected
		if err := NewAssemblyRepository(tx).Upsert(ctx, items); err != nil {
			return fmt.Errorf("upsert assemblies: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// LockCodes 트랜잭션 안에서 조립품 행을 잠근다. sqlite는 행 잠금이 없어 일반 조회로 대체
func (r *AssemblyRepository) LockCodes(ctx context.Context, codes []string) ([]entity.Assembly, error) {
	var items []entity.Assembly
	if len(codes) == 0 {
		return items, nil
	}
	query := r.db.WithContext(ctx).Where("assembly_code IN ?", codes).Order("assembly_code")
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Find(&items).Error
	return items, err
}
