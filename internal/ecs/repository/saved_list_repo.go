package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"gorm.io/gorm"
)

// SavedListRepository 사용자별 저장 리스트
type SavedListRepository struct {
	db *gorm.DB
}

func NewSavedListRepository(db *gorm.DB) *SavedListRepository {
	return &SavedListRepository{db: db}
}

// Upsert 이미 있는 코드는 스냅샷만 갱신
func (r *SavedListRepository) Upsert(ctx context.Context, userID uint, entries []entity.SavedListEntry) (saved, updated int, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			e := entries[i]
			e.UserID = userID

			var existing entity.SavedListEntry
			findErr := tx.Where("user_id = ? AND assembly_code = ?", userID, e.AssemblyCode).First(&existing).Error
			switch {
			case findErr == nil:
				if err := tx.Model(&existing).Updates(map[string]interface{}{
					"assembly_data": e.AssemblyData,
					"updated_at":    time.Now(),
				}).Error; err != nil {
					return err
				}
				updated++
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				if err := tx.Create(&e).Error; err != nil {
					return err
				}
				saved++
			default:
				return findErr
			}
		}
		return nil
	})
	return saved, updated, err
}

// List 최근 저장 순
func (r *SavedListRepository) List(ctx context.Context, userID uint) ([]entity.SavedListEntry, error) {
	var items []entity.SavedListEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

// Delete 삭제된 행이 없으면 false
func (r *SavedListRepository) Delete(ctx context.Context, userID uint, code string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND assembly_code = ?", userID, code).
		Delete(&entity.SavedListEntry{})
	return res.RowsAffected > 0, res.Error
}

func (r *SavedListRepository) Clear(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.SavedListEntry{})
	return res.RowsAffected, res.Error
}

func (r *SavedListRepository) Count(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.SavedListEntry{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}
