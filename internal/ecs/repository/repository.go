package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale 조회 후 다른 요청이 먼저 상태를 바꾼 경우
	ErrStale = errors.New("record changed concurrently")
)

// Repositories ECS 저장소 모음
type Repositories struct {
	db          *gorm.DB
	Assembly    *AssemblyRepository
	User        *UserRepository
	SavedList   *SavedListRepository
	Inspection  *InspectionRepository
	ActivityLog *ActivityLogRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Assembly:    NewAssemblyRepository(db),
		User:        NewUserRepository(db),
		SavedList:   NewSavedListRepository(db),
		Inspection:  NewInspectionRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// Transaction fn 안에서는 tx 기반 저장소를 사용한다
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Ping DB 연결 확인 (/health/ready)
func (r *Repositories) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
