package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
)

// ErrInvalidCredentials 아이디/비밀번호 불일치 또는 비활성 계정
var ErrInvalidCredentials = errors.New("아이디 또는 비밀번호가 올바르지 않습니다")

const refreshKeyPrefix = "token:refresh:"

// HashPassword 기존 사용자 테이블과 같은 SHA-256 hex
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// AuthService 로그인과 토큰 발급
type AuthService struct {
	userRepo *repository.UserRepository
	store    cache.Cache
	cfg      *config.Config
	logger   *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, store cache.Cache, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("auth"),
	}
}

// TokenPair 토큰 쌍
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult 로그인 응답. token 필드는 예전 클라이언트 호환
type LoginResult struct {
	TokenPair
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

// Login 활성 사용자만 로그인 가능
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive || user.PasswordHash != HashPassword(password) {
		s.logger.Info("login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		s.logger.Warn("update last_login_at", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	s.logger.Info("login", zap.String("username", user.Username), zap.Int("level", user.PermissionLevel))
	return &LoginResult{TokenPair: *pair, Token: pair.AccessToken, User: user}, nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"uid":      user.ID,
		"username": user.Username,
		"name":     user.DisplayName(),
		"level":    user.PermissionLevel,
		"iss":      s.cfg.JWT.Issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":      uuid.New().String(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.Set(ctx, refreshKeyPrefix+refreshJti, user.ID, s.cfg.JWT.RefreshTokenExpire); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

func (s *AuthService) parseRefresh(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid refresh token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims["type"] != "refresh" {
		return "", fmt.Errorf("invalid token type")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return "", fmt.Errorf("missing jti")
	}
	return jti, nil
}

// Refresh 사용한 refresh 토큰은 폐기하고 새 쌍을 발급
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var userID uint
	ok, err := s.store.Get(ctx, refreshKeyPrefix+jti, &userID)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := s.store.Delete(ctx, refreshKeyPrefix+jti); err != nil {
		s.logger.Warn("delete refresh token", zap.Error(err))
	}
	return s.generateTokenPair(ctx, user)
}

// Logout refresh 토큰 폐기. access 토큰은 만료까지 유효
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	return s.store.Delete(ctx, refreshKeyPrefix+jti)
}
