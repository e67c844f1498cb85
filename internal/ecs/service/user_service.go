package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"go.uber.org/zap"
)

// DefaultPassword 관리자가 비밀번호 없이 만든 계정
const DefaultPassword = "1234"

// UserService 사용자 관리 (Level 5)
type UserService struct {
	repo   *repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger.Named("user")}
}

// UserInput 생성/수정 입력. 수정 시 nil 필드는 그대로 둔다
type UserInput struct {
	Username        string  `json:"username"`
	Password        *string `json:"password"`
	FullName        *string `json:"full_name"`
	PermissionLevel *int    `json:"permission_level"`
	Company         *string `json:"company"`
	IsActive        *bool   `json:"is_active"`
}

func (s *UserService) admin(actor lifecycle.Actor) error {
	return lifecycle.Authorize(lifecycle.LevelAdmin, actor.Level)
}

func (s *UserService) List(ctx context.Context, actor lifecycle.Actor) ([]entity.User, error) {
	if err := s.admin(actor); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create 비밀번호를 안 주면 기본 비밀번호
func (s *UserService) Create(ctx context.Context, actor lifecycle.Actor, in UserInput) (*entity.User, error) {
	if err := s.admin(actor); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.Validation("사용자명을 입력해주세요")
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("이미 존재하는 사용자명입니다: " + username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	level := 1
	if in.PermissionLevel != nil {
		level = *in.PermissionLevel
	}
	if _, err := lifecycle.ParseLevel(level); err != nil {
		return nil, err
	}
	password := DefaultPassword
	if in.Password != nil && *in.Password != "" {
		password = *in.Password
	}

	user := &entity.User{
		Username:        username,
		PasswordHash:    HashPassword(password),
		PermissionLevel: level,
		IsActive:        true,
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Company != nil {
		user.Company = strings.TrimSpace(*in.Company)
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", zap.String("username", username), zap.Int("level", level), zap.String("by", actor.Username))
	return user, nil
}

func (s *UserService) find(ctx context.Context, id uint) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("사용자를 찾을 수 없습니다")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, actor lifecycle.Actor, id uint, in UserInput) (*entity.User, error) {
	if err := s.admin(actor); err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Company != nil {
		fields["company"] = strings.TrimSpace(*in.Company)
	}
	if in.PermissionLevel != nil {
		if _, err := lifecycle.ParseLevel(*in.PermissionLevel); err != nil {
			return nil, err
		}
		fields["permission_level"] = *in.PermissionLevel
	}
	if in.IsActive != nil {
		if !*in.IsActive && id == actor.UserID {
			return nil, apperr.Validation("자기 자신은 비활성화할 수 없습니다")
		}
		fields["is_active"] = *in.IsActive
	}
	if in.Password != nil && *in.Password != "" {
		fields["password_hash"] = HashPassword(*in.Password)
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("수정할 항목이 없습니다")
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", zap.Uint("user_id", id), zap.String("by", actor.Username))
	return s.find(ctx, id)
}

// Deactivate 기록은 남기고 로그인만 막는다
func (s *UserService) Deactivate(ctx context.Context, actor lifecycle.Actor, id uint) error {
	inactive := false
	_, err := s.Update(ctx, actor, id, UserInput{IsActive: &inactive})
	return err
}

// DeletePermanently 본인 계정은 삭제할 수 없다
func (s *UserService) DeletePermanently(ctx context.Context, actor lifecycle.Actor, id uint) error {
	if err := s.admin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return apperr.Validation("자기 자신은 삭제할 수 없습니다")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("사용자를 찾을 수 없습니다")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted", zap.Uint("user_id", id), zap.String("by", actor.Username))
	return nil
}
